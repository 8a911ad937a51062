package orders

import (
	"testing"

	"dinner-house/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func TestHalfUpCents(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{100, 100},
		{100.4, 100},
		{100.5, 101},
		{100.6, 101},
		{0.5, 1},
		{0.49, 0},
		{-100.4, -100},
		{-100.5, -101},
		{-0.5, -1},
	}
	for _, tt := range tests {
		if got := HalfUpCents(tt.in); got != tt.want {
			t.Errorf("HalfUpCents(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCalcItemUnitCents(t *testing.T) {
	item := &domain.MenuItem{Code: "steak", BasePriceCents: 2000}

	tests := []struct {
		name string
		opts []domain.ItemOption
		want int64
	}{
		{"no options", nil, 2000},
		{
			"addon only",
			[]domain.ItemOption{
				{GroupName: "Side", GroupPriceMode: domain.PriceAddon, Name: "Fries", PriceDeltaCents: 300},
			},
			2300,
		},
		{
			"multiplier applies after addons",
			[]domain.ItemOption{
				{GroupName: "Side", GroupPriceMode: domain.PriceAddon, Name: "Fries", PriceDeltaCents: 300},
				{GroupName: "Size", GroupPriceMode: domain.PriceMultiplier, Name: "Large", Multiplier: fptr(1.5)},
			},
			3450,
		},
		{
			"multiplier rounds half up",
			[]domain.ItemOption{
				{GroupName: "Size", GroupPriceMode: domain.PriceMultiplier, Name: "Petite", Multiplier: fptr(0.3333)},
			},
			667, // 2000 * 0.3333 = 666.6
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, snaps := CalcItemUnitCents(item, tt.opts)
			if got != tt.want {
				t.Errorf("unit = %d, want %d", got, tt.want)
			}
			if len(snaps) != len(tt.opts) {
				t.Errorf("snapshot count = %d, want %d", len(snaps), len(tt.opts))
			}
		})
	}
}

func TestCalcItemUnitCentsSnapshotsZeroMultiplierDelta(t *testing.T) {
	item := &domain.MenuItem{Code: "wine", BasePriceCents: 1000}
	opts := []domain.ItemOption{
		{GroupName: "Size", GroupPriceMode: domain.PriceMultiplier, Name: "Double", Multiplier: fptr(2)},
	}
	_, snaps := CalcItemUnitCents(item, opts)
	if len(snaps) != 1 || snaps[0].PriceDeltaCents != 0 {
		t.Errorf("multiplier snapshot should carry zero delta, got %+v", snaps)
	}
}

func TestApplyStyleToBase(t *testing.T) {
	dinner := &domain.DinnerType{Code: "valentine", BasePriceCents: 10000}

	tests := []struct {
		name       string
		style      domain.ServingStyle
		wantUnit   int64
		wantAdjust int64
	}{
		{"addon style", domain.ServingStyle{Code: "grand", PriceMode: domain.PriceAddon, PriceValue: 1500}, 11500, 1500},
		{"multiplier style", domain.ServingStyle{Code: "deluxe", PriceMode: domain.PriceMultiplier, PriceValue: 1.25}, 12500, 2500},
		{"multiplier rounds", domain.ServingStyle{Code: "mini", PriceMode: domain.PriceMultiplier, PriceValue: 0.3333}, 3333, -6667},
		{"free style", domain.ServingStyle{Code: "simple", PriceMode: domain.PriceAddon, PriceValue: 0}, 10000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, adjust := ApplyStyleToBase(dinner, &tt.style)
			if unit != tt.wantUnit || adjust != tt.wantAdjust {
				t.Errorf("got (%d, %d), want (%d, %d)", unit, adjust, tt.wantUnit, tt.wantAdjust)
			}
		})
	}
}

func TestDinnerOptionDelta(t *testing.T) {
	tests := []struct {
		name string
		opt  domain.DinnerOption
		unit int64
		want int64
	}{
		{"addon passes through", domain.DinnerOption{GroupPriceMode: domain.PriceAddon, PriceDeltaCents: 700}, 10000, 700},
		{"multiplier becomes delta", domain.DinnerOption{GroupPriceMode: domain.PriceMultiplier, Multiplier: fptr(1.2)}, 10000, 2000},
		{"discount multiplier", domain.DinnerOption{GroupPriceMode: domain.PriceMultiplier, Multiplier: fptr(0.9)}, 9999, -1000},
		{"negative tie away from zero", domain.DinnerOption{GroupPriceMode: domain.PriceMultiplier, Multiplier: fptr(0.5)}, 1001, -501},
		{"nil multiplier is identity", domain.DinnerOption{GroupPriceMode: domain.PriceMultiplier}, 10000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DinnerOptionDelta(&tt.opt, tt.unit); got != tt.want {
				t.Errorf("delta = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLineTotalCents(t *testing.T) {
	if got := LineTotalCents(1050, 2.5); got != 2625 {
		t.Errorf("LineTotalCents = %d, want 2625", got)
	}
	if got := LineTotalCents(333, 0.5); got != 167 { // 166.5 rounds up
		t.Errorf("LineTotalCents = %d, want 167", got)
	}
}
