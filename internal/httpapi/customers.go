package httpapi

import (
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dinner-house/internal/domain"
)

type createCustomerRequest struct {
	Username       string           `json:"username"`
	Password       string           `json:"password"`
	RealName       *string          `json:"real_name,omitempty"`
	Phone          *string          `json:"phone,omitempty"`
	Addresses      []map[string]any `json:"addresses,omitempty"`
	ProfileConsent bool             `json:"profile_consent"`
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if req.Username == "" || len(req.Password) < 8 {
		writeError(w, s.log, domain.Invalidf("username and a password of at least 8 characters are required"))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	c := &domain.Customer{
		Username:       req.Username,
		Password:       string(hash),
		RealName:       req.RealName,
		Phone:          req.Phone,
		Addresses:      req.Addresses,
		ProfileConsent: req.ProfileConsent,
	}
	if req.ProfileConsent {
		now := time.Now().UTC()
		c.ProfileConsentAt = &now
	}
	id, err := s.accounts.Create(r.Context(), c)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	c.ID = id
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	c, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) updateAddresses(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req struct {
		Addresses []map[string]any `json:"addresses"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.accounts.UpdateAddresses(r.Context(), id, req.Addresses); err != nil {
		writeError(w, s.log, err)
		return
	}
	c, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) setLoyaltyTier(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req struct {
		Tier string `json:"tier"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.accounts.SetLoyaltyTier(r.Context(), id, req.Tier); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer_id": id, "loyalty_tier": req.Tier})
}
