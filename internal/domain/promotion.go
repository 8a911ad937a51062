package domain

import (
	"strings"
	"time"
)

// Coupon kinds.
const (
	CouponPercent = "percent"
	CouponFixed   = "fixed"
)

// Coupon channels; ChannelAny matches every order source.
const ChannelAny = "ANY"

type Coupon struct {
	Code   string `json:"code"` // stored upper-cased
	Name   string `json:"name"`
	Label  string `json:"label,omitempty"`
	Active bool   `json:"active"`

	Kind  string  `json:"kind"`
	Value float64 `json:"value"` // percent 0..100 or fixed cents

	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`

	MinSubtotalCents *int64 `json:"min_subtotal_cents,omitempty"`
	MaxDiscountCents *int64 `json:"max_discount_cents,omitempty"`

	StackableWithMembership bool   `json:"stackable_with_membership"`
	StackableWithCoupons    bool   `json:"stackable_with_coupons"`
	Channel                 string `json:"channel"`

	MaxRedemptionsGlobal  *int `json:"max_redemptions_global,omitempty"`
	MaxRedemptionsPerUser *int `json:"max_redemptions_per_user,omitempty"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidNow checks the active flag and the validity window only; redemption
// limits need storage counts and are checked by the promotion service.
func (c *Coupon) ValidNow(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false
	}
	return true
}

type CouponRedemption struct {
	CouponCode  string    `json:"coupon"`
	CustomerID  int64     `json:"customer_id"`
	OrderID     int64     `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Channel     string    `json:"channel"`
	RedeemedAt  time.Time `json:"redeemed_at"`
}

type Membership struct {
	CustomerID int64      `json:"customer_id"`
	Label      string     `json:"label"`
	PercentOff float64    `json:"percent_off"`
	Active     bool       `json:"active"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

func (m *Membership) ValidNow(now time.Time) bool {
	if !m.Active {
		return false
	}
	if m.ValidFrom != nil && now.Before(*m.ValidFrom) {
		return false
	}
	if m.ValidUntil != nil && now.After(*m.ValidUntil) {
		return false
	}
	return true
}

// DiscountLine is one applied discount in evaluation order.
type DiscountLine struct {
	Type        string `json:"type"` // "membership" | "coupon"
	Label       string `json:"label"`
	Code        string `json:"code,omitempty"`
	AmountCents int64  `json:"amount_cents"`
}
