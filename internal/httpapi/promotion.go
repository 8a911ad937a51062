package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dinner-house/internal/domain"
)

func (s *Server) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := s.promos.ListCoupons(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coupons": coupons})
}

func (s *Server) getCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := s.promos.GetCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) upsertCoupon(w http.ResponseWriter, r *http.Request) {
	var c domain.Coupon
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, s.log, err)
		return
	}
	c.Code = domain.NormalizeCouponCode(chi.URLParam(r, "code"))
	if c.Kind != domain.CouponPercent && c.Kind != domain.CouponFixed {
		writeError(w, s.log, domain.Invalidf("kind must be %q or %q", domain.CouponPercent, domain.CouponFixed))
		return
	}
	if c.Kind == domain.CouponPercent && (c.Value <= 0 || c.Value > 100) {
		writeError(w, s.log, domain.Invalidf("percent value must be in (0, 100]"))
		return
	}
	if c.Channel == "" {
		c.Channel = domain.ChannelAny
	}
	if err := s.promos.UpsertCoupon(r.Context(), &c); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) upsertMembership(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "customerID")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var m domain.Membership
	if err := decodeJSON(r, &m); err != nil {
		writeError(w, s.log, err)
		return
	}
	m.CustomerID = id
	if m.PercentOff <= 0 || m.PercentOff > 100 {
		writeError(w, s.log, domain.Invalidf("percent_off must be in (0, 100]"))
		return
	}
	if _, err := s.accounts.Get(r.Context(), id); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.promos.UpsertMembership(r.Context(), &m); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
