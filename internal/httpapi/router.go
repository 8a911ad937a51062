package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dinner-house/internal/accounts"
	"dinner-house/internal/catalog"
	"dinner-house/internal/logger"
	"dinner-house/internal/orders"
	"dinner-house/internal/promotion"
	"dinner-house/internal/staff"
)

type Server struct {
	orders    *orders.Service
	ledger    *staff.Ledger
	staffRepo *staff.Repository
	catalog   *catalog.Service
	promos    *promotion.Repository
	accounts  *accounts.Repository
	log       *logger.Logger
}

func NewServer(
	ordersSvc *orders.Service,
	ledger *staff.Ledger,
	staffRepo *staff.Repository,
	catalogSvc *catalog.Service,
	promos *promotion.Repository,
	accts *accounts.Repository,
	log *logger.Logger,
) *Server {
	return &Server{
		orders:    ordersSvc,
		ledger:    ledger,
		staffRepo: staffRepo,
		catalog:   catalogSvc,
		promos:    promos,
		accounts:  accts,
		log:       log,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/menu", func(r chi.Router) {
			r.Get("/categories", s.listCategories)
			r.Get("/items", s.listMenuItems)
			r.Get("/items/{code}", s.getMenuItem)
			r.Get("/styles", s.listStyles)
		})
		r.Route("/dinners", func(r chi.Router) {
			r.Get("/", s.listDinners)
			r.Get("/{code}", s.getDinner)
			r.Get("/{code}/addons", s.dinnerAddons)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", s.createOrder)
			r.Post("/preview", s.previewOrder)
			r.Get("/", s.listOrders)
			r.Get("/number/{number}", s.getOrderByNumber)
			r.Get("/{id}", s.getOrder)
			r.Get("/{id}/history", s.orderHistory)
			r.Post("/{id}/actions", s.orderAction)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", s.createCustomer)
			r.Get("/{id}", s.getCustomer)
			r.Put("/{id}/addresses", s.updateAddresses)
			r.Put("/{id}/tier", s.setLoyaltyTier)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Get("/", s.listStaff)
			r.Get("/reports/daily-hours.xlsx", s.dailyHoursReport)
			r.Post("/{id}/clock-in", s.clockIn)
			r.Post("/{id}/clock-out", s.clockOut)
			r.Get("/{id}/shift", s.currentShift)
			r.Get("/{id}/shifts", s.listShifts)
			r.Get("/{id}/daily-hours", s.dailyHours)
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/items", s.searchInventory)
			r.Post("/stock", s.bulkStock)
			r.Patch("/items/{code}", s.patchStock)
			r.Post("/stocktake", s.uploadStocktake)
		})

		r.Route("/promotions", func(r chi.Router) {
			r.Get("/coupons", s.listCoupons)
			r.Get("/coupons/{code}", s.getCoupon)
			r.Put("/coupons/{code}", s.upsertCoupon)
			r.Put("/memberships/{customerID}", s.upsertMembership)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
