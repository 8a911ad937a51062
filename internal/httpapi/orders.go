package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dinner-house/internal/domain"
	"dinner-house/internal/orders"
)

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	order, err := s.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) previewOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	preview, err := s.orders.PreviewPrice(r.Context(), req)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	f := orders.ListFilter{
		Status:     r.URL.Query().Get("status"),
		CustomerID: queryInt64(r, "customer_id"),
		Limit:      queryInt(r, "limit"),
		Offset:     queryInt(r, "offset"),
	}
	list, err := s.orders.List(r.Context(), f)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	order, err := s.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) orderHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	log, err := s.orders.History(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": log})
}

type orderActionRequest struct {
	Action    string `json:"action"`
	StaffName string `json:"staff_name"`
	Notes     string `json:"notes,omitempty"`
}

func (s *Server) orderAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req orderActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if req.StaffName == "" {
		writeError(w, s.log, domain.Invalidf("staff_name is required"))
		return
	}
	order, err := s.orders.Transition(r.Context(), id, req.Action, req.StaffName, req.Notes)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func pathInt64(r *http.Request, key string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || v <= 0 {
		return 0, domain.Invalidf("%s must be a positive integer", key)
	}
	return v, nil
}
