package promotion

import (
	"context"
	"errors"
	"math"
	"time"

	"dinner-house/internal/domain"
	"dinner-house/internal/logger"
)

// Store is the read side the evaluator needs. *Repository satisfies it.
type Store interface {
	ActiveMembership(ctx context.Context, customerID int64) (*domain.Membership, error)
	CouponsByCode(ctx context.Context, codes []string) (map[string]*domain.Coupon, error)
	RedemptionCount(ctx context.Context, code string) (int, error)
	RedemptionCountForCustomer(ctx context.Context, code string, customerID int64) (int, error)
}

type Service struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

type EvalInput struct {
	SubtotalCents int64
	CustomerID    int64
	Channel       string
	CouponCodes   []string
}

type EvalResult struct {
	Discounts     []domain.DiscountLine
	DiscountCents int64
	TotalCents    int64
}

// Evaluate applies the membership percent first, then coupons. Coupon
// eligibility checks active/window/channel/minimum-subtotal plus soft
// redemption-limit counts; a mix containing any non-stackable coupon keeps
// only the single largest discount, otherwise eligible coupons stack in
// request order. The running total never goes below zero.
func (s *Service) Evaluate(ctx context.Context, in EvalInput) (EvalResult, error) {
	now := s.now()
	res := EvalResult{TotalCents: in.SubtotalCents}
	running := in.SubtotalCents

	if in.CustomerID != 0 {
		m, err := s.store.ActiveMembership(ctx, in.CustomerID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return res, err
		}
		if m != nil && m.ValidNow(now) {
			amt := halfUp(float64(in.SubtotalCents) * m.PercentOff / 100)
			if amt > 0 {
				label := m.Label
				if label == "" {
					label = "Membership"
				}
				running -= amt
				res.Discounts = append(res.Discounts, domain.DiscountLine{
					Type: "membership", Label: label, AmountCents: amt,
				})
			}
		}
	}

	codes := normalizeCodes(in.CouponCodes)
	if len(codes) == 0 {
		return s.finish(res, running), nil
	}

	coupons, err := s.store.CouponsByCode(ctx, codes)
	if err != nil {
		return res, err
	}

	hasMembership := len(res.Discounts) > 0

	type candidate struct {
		coupon *domain.Coupon
		amount int64
	}
	var eligible []candidate
	for _, code := range codes {
		c := coupons[code]
		if c == nil || !c.ValidNow(now) {
			continue
		}
		if c.Channel != domain.ChannelAny && c.Channel != channelOr(in.Channel) {
			continue
		}
		if c.MinSubtotalCents != nil && in.SubtotalCents < *c.MinSubtotalCents {
			continue
		}
		if hasMembership && !c.StackableWithMembership {
			continue
		}
		if ok, err := s.underLimits(ctx, c, in.CustomerID); err != nil {
			return res, err
		} else if !ok {
			continue
		}
		if amt := couponAmount(c, running); amt > 0 {
			eligible = append(eligible, candidate{coupon: c, amount: amt})
		}
	}
	if len(eligible) == 0 {
		return s.finish(res, running), nil
	}

	exclusive := false
	for _, e := range eligible {
		if !e.coupon.StackableWithCoupons {
			exclusive = true
			break
		}
	}

	if exclusive {
		best := eligible[0]
		for _, e := range eligible[1:] {
			if e.amount > best.amount {
				best = e
			}
		}
		amt := min64(best.amount, running)
		running -= amt
		res.Discounts = append(res.Discounts, couponLine(best.coupon, amt))
	} else {
		for _, e := range eligible {
			amt := min64(e.amount, running)
			if amt <= 0 {
				continue
			}
			running -= amt
			res.Discounts = append(res.Discounts, couponLine(e.coupon, amt))
		}
	}

	return s.finish(res, running), nil
}

func (s *Service) finish(res EvalResult, running int64) EvalResult {
	var total int64
	for _, d := range res.Discounts {
		total += d.AmountCents
	}
	res.DiscountCents = total
	res.TotalCents = running
	return res
}

func (s *Service) underLimits(ctx context.Context, c *domain.Coupon, customerID int64) (bool, error) {
	if c.MaxRedemptionsPerUser != nil && customerID != 0 {
		used, err := s.store.RedemptionCountForCustomer(ctx, c.Code, customerID)
		if err != nil {
			return false, err
		}
		if used >= *c.MaxRedemptionsPerUser {
			return false, nil
		}
	}
	if c.MaxRedemptionsGlobal != nil {
		used, err := s.store.RedemptionCount(ctx, c.Code)
		if err != nil {
			return false, err
		}
		if used >= *c.MaxRedemptionsGlobal {
			return false, nil
		}
	}
	return true, nil
}

func couponAmount(c *domain.Coupon, baseCents int64) int64 {
	var amt int64
	if c.Kind == domain.CouponPercent {
		amt = halfUp(float64(baseCents) * c.Value / 100)
	} else {
		amt = halfUp(c.Value)
	}
	if c.MaxDiscountCents != nil && amt > *c.MaxDiscountCents {
		amt = *c.MaxDiscountCents
	}
	if amt < 0 {
		return 0
	}
	return amt
}

func couponLine(c *domain.Coupon, amount int64) domain.DiscountLine {
	label := c.Label
	if label == "" {
		label = c.Name
	}
	if label == "" {
		label = c.Code
	}
	return domain.DiscountLine{Type: "coupon", Label: label, Code: c.Code, AmountCents: amount}
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if n := domain.NormalizeCouponCode(c); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func channelOr(ch string) string {
	if ch == "" {
		return domain.SourceGUI
	}
	return ch
}

// halfUp rounds to a whole cent, ties away from zero.
func halfUp(x float64) int64 {
	return int64(math.Round(x))
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
