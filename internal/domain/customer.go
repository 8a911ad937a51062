package domain

import "time"

// Loyalty tiers.
const (
	TierNone   = "none"
	TierSilver = "silver"
	TierGold   = "gold"
)

type Customer struct {
	ID               int64            `json:"customer_id"`
	Username         string           `json:"username"`
	Password         string           `json:"-"`
	RealName         *string          `json:"real_name,omitempty"`
	Phone            *string          `json:"phone,omitempty"`
	Addresses        []map[string]any `json:"addresses"` // at most 3, enforced in schema
	LoyaltyTier      string           `json:"loyalty_tier"`
	ProfileConsent   bool             `json:"profile_consent"`
	ProfileConsentAt *time.Time       `json:"profile_consent_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}
