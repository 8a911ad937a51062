package promotion

import (
	"context"
	"testing"
	"time"

	"dinner-house/internal/domain"
	"dinner-house/internal/logger"
)

type fakePromoStore struct {
	membership  *domain.Membership
	coupons     map[string]*domain.Coupon
	globalUsed  map[string]int
	perUserUsed map[string]int
}

func (f *fakePromoStore) ActiveMembership(_ context.Context, _ int64) (*domain.Membership, error) {
	if f.membership == nil {
		return nil, domain.ErrNotFound
	}
	return f.membership, nil
}

func (f *fakePromoStore) CouponsByCode(_ context.Context, codes []string) (map[string]*domain.Coupon, error) {
	out := map[string]*domain.Coupon{}
	for _, c := range codes {
		if cp, ok := f.coupons[c]; ok {
			out[c] = cp
		}
	}
	return out, nil
}

func (f *fakePromoStore) RedemptionCount(_ context.Context, code string) (int, error) {
	return f.globalUsed[code], nil
}

func (f *fakePromoStore) RedemptionCountForCustomer(_ context.Context, code string, _ int64) (int, error) {
	return f.perUserUsed[code], nil
}

func iptr(v int) *int       { return &v }
func i64ptr(v int64) *int64 { return &v }

func percentCoupon(code string, pct float64) *domain.Coupon {
	return &domain.Coupon{
		Code: code, Name: code, Active: true,
		Kind: domain.CouponPercent, Value: pct,
		StackableWithMembership: true, StackableWithCoupons: true,
		Channel: domain.ChannelAny,
	}
}

func fixedCoupon(code string, cents float64) *domain.Coupon {
	return &domain.Coupon{
		Code: code, Name: code, Active: true,
		Kind: domain.CouponFixed, Value: cents,
		StackableWithMembership: true, StackableWithCoupons: true,
		Channel: domain.ChannelAny,
	}
}

func newTestService(store *fakePromoStore) *Service {
	return NewService(store, logger.NewNop())
}

func TestEvaluateNoDiscounts(t *testing.T) {
	svc := newTestService(&fakePromoStore{coupons: map[string]*domain.Coupon{}})
	res, err := svc.Evaluate(context.Background(), EvalInput{SubtotalCents: 10000, CustomerID: 1})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.DiscountCents != 0 || res.TotalCents != 10000 || len(res.Discounts) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestEvaluateMembershipFirst(t *testing.T) {
	store := &fakePromoStore{
		membership: &domain.Membership{CustomerID: 1, Label: "Gold", PercentOff: 10, Active: true},
		coupons:    map[string]*domain.Coupon{"SAVE10": percentCoupon("SAVE10", 10)},
	}
	svc := newTestService(store)

	res, err := svc.Evaluate(context.Background(), EvalInput{
		SubtotalCents: 10000, CustomerID: 1, CouponCodes: []string{"save10"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Membership takes 1000 off the subtotal; the coupon then takes 10% of
	// the remaining 9000.
	if len(res.Discounts) != 2 {
		t.Fatalf("expected 2 lines, got %+v", res.Discounts)
	}
	if res.Discounts[0].Type != "membership" || res.Discounts[0].AmountCents != 1000 {
		t.Errorf("membership line = %+v", res.Discounts[0])
	}
	if res.Discounts[1].Code != "SAVE10" || res.Discounts[1].AmountCents != 900 {
		t.Errorf("coupon line = %+v", res.Discounts[1])
	}
	if res.DiscountCents != 1900 || res.TotalCents != 8100 {
		t.Errorf("totals = %d/%d, want 1900/8100", res.DiscountCents, res.TotalCents)
	}
}

func TestEvaluateNonStackableKeepsBest(t *testing.T) {
	small := fixedCoupon("SMALL", 500)
	big := fixedCoupon("BIG", 2000)
	big.StackableWithCoupons = false

	store := &fakePromoStore{coupons: map[string]*domain.Coupon{"SMALL": small, "BIG": big}}
	svc := newTestService(store)

	res, err := svc.Evaluate(context.Background(), EvalInput{
		SubtotalCents: 10000, CustomerID: 1, CouponCodes: []string{"SMALL", "BIG"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Discounts) != 1 || res.Discounts[0].Code != "BIG" {
		t.Fatalf("expected only BIG applied, got %+v", res.Discounts)
	}
	if res.TotalCents != 8000 {
		t.Errorf("total = %d, want 8000", res.TotalCents)
	}
}

func TestEvaluateStackableApplyInOrder(t *testing.T) {
	store := &fakePromoStore{coupons: map[string]*domain.Coupon{
		"A": fixedCoupon("A", 3000),
		"B": percentCoupon("B", 50),
	}}
	svc := newTestService(store)

	res, err := svc.Evaluate(context.Background(), EvalInput{
		SubtotalCents: 10000, CustomerID: 1, CouponCodes: []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Both amounts are computed against the post-membership base (10000),
	// then clamped sequentially: A takes 3000, B takes 5000.
	if res.DiscountCents != 8000 || res.TotalCents != 2000 {
		t.Errorf("totals = %d/%d, want 8000/2000", res.DiscountCents, res.TotalCents)
	}
}

func TestEvaluateNeverNegative(t *testing.T) {
	store := &fakePromoStore{coupons: map[string]*domain.Coupon{
		"A": fixedCoupon("A", 9000),
		"B": fixedCoupon("B", 9000),
	}}
	svc := newTestService(store)

	res, err := svc.Evaluate(context.Background(), EvalInput{
		SubtotalCents: 10000, CustomerID: 1, CouponCodes: []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.TotalCents != 0 {
		t.Errorf("total = %d, want 0", res.TotalCents)
	}
	if res.Discounts[1].AmountCents != 1000 {
		t.Errorf("second coupon should be clamped to 1000, got %+v", res.Discounts[1])
	}
}

func TestEvaluateEligibilityFilters(t *testing.T) {
	now := time.Now()
	expired := fixedCoupon("EXPIRED", 500)
	past := now.Add(-time.Hour)
	expired.ValidUntil = &past

	voiceOnly := fixedCoupon("VOICE1", 500)
	voiceOnly.Channel = domain.SourceVoice

	bigOrder := fixedCoupon("BIG50", 500)
	bigOrder.MinSubtotalCents = i64ptr(50000)

	usedUp := fixedCoupon("USED", 500)
	usedUp.MaxRedemptionsPerUser = iptr(1)

	globalCap := fixedCoupon("GLOBAL", 500)
	globalCap.MaxRedemptionsGlobal = iptr(10)

	noStack := fixedCoupon("SOLO", 500)
	noStack.StackableWithMembership = false

	store := &fakePromoStore{
		membership: &domain.Membership{CustomerID: 1, PercentOff: 5, Active: true},
		coupons: map[string]*domain.Coupon{
			"EXPIRED": expired, "VOICE1": voiceOnly, "BIG50": bigOrder,
			"USED": usedUp, "GLOBAL": globalCap, "SOLO": noStack,
		},
		globalUsed:  map[string]int{"GLOBAL": 10},
		perUserUsed: map[string]int{"USED": 1},
	}
	svc := newTestService(store)

	res, err := svc.Evaluate(context.Background(), EvalInput{
		SubtotalCents: 10000, CustomerID: 1, Channel: domain.SourceGUI,
		CouponCodes: []string{"EXPIRED", "VOICE1", "BIG50", "USED", "GLOBAL", "SOLO"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Only the membership line survives: every coupon fails a filter.
	if len(res.Discounts) != 1 || res.Discounts[0].Type != "membership" {
		t.Errorf("expected membership only, got %+v", res.Discounts)
	}
}

func TestEvaluateMaxDiscountCap(t *testing.T) {
	capped := percentCoupon("CAP", 50)
	capped.MaxDiscountCents = i64ptr(1200)

	store := &fakePromoStore{coupons: map[string]*domain.Coupon{"CAP": capped}}
	svc := newTestService(store)

	res, err := svc.Evaluate(context.Background(), EvalInput{
		SubtotalCents: 10000, CustomerID: 1, CouponCodes: []string{"CAP"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.DiscountCents != 1200 {
		t.Errorf("discount = %d, want capped 1200", res.DiscountCents)
	}
}

func TestEvaluateRoundsHalfUp(t *testing.T) {
	store := &fakePromoStore{
		membership: &domain.Membership{CustomerID: 1, PercentOff: 33, Active: true},
	}
	svc := newTestService(store)

	res, err := svc.Evaluate(context.Background(), EvalInput{SubtotalCents: 9999, CustomerID: 1})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// 9999 * 0.33 = 3299.67 rounds to 3300.
	if res.DiscountCents != 3300 {
		t.Errorf("discount = %d, want 3300", res.DiscountCents)
	}
}
