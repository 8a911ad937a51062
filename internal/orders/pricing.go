package orders

import (
	"math"

	"dinner-house/internal/domain"
)

// HalfUpCents rounds to a whole cent, ties away from zero.
func HalfUpCents(x float64) int64 {
	return int64(math.Round(x))
}

// CalcItemUnitCents prices one menu item with its selected options: addon
// deltas accumulate onto the base, then every multiplier is applied to
// (base + addons) and the result is rounded half-up. Returns the unit price
// and the frozen option snapshot lines.
func CalcItemUnitCents(item *domain.MenuItem, opts []domain.ItemOption) (int64, []domain.OrderOptionSnap) {
	base := float64(item.BasePriceCents)
	addon := 0.0
	mult := 1.0
	snaps := make([]domain.OrderOptionSnap, 0, len(opts))

	for _, o := range opts {
		if o.GroupPriceMode == domain.PriceMultiplier {
			m := 1.0
			if o.Multiplier != nil {
				m = *o.Multiplier
			}
			mult *= m
			snaps = append(snaps, domain.OrderOptionSnap{
				OptionGroupName: o.GroupName,
				OptionName:      o.Name,
				PriceDeltaCents: 0,
			})
			continue
		}
		addon += float64(o.PriceDeltaCents)
		snaps = append(snaps, domain.OrderOptionSnap{
			OptionGroupName: o.GroupName,
			OptionName:      o.Name,
			PriceDeltaCents: o.PriceDeltaCents,
		})
	}

	return HalfUpCents((base + addon) * mult), snaps
}

// ApplyStyleToBase prices the dinner base under a serving style. Returns the
// styled unit price and the style adjustment relative to the plain base.
func ApplyStyleToBase(dinner *domain.DinnerType, style *domain.ServingStyle) (unitCents, adjustCents int64) {
	base := float64(dinner.BasePriceCents)
	if style.PriceMode == domain.PriceMultiplier {
		unit := HalfUpCents(base * style.PriceValue)
		return unit, unit - dinner.BasePriceCents
	}
	inc := HalfUpCents(style.PriceValue)
	return dinner.BasePriceCents + inc, inc
}

// DinnerOptionDelta converts a dinner option into an addon delta against the
// current styled unit price. Multiplier options become unit*(m-1) so every
// snapshot line carries a plain cent amount.
func DinnerOptionDelta(opt *domain.DinnerOption, unitCents int64) int64 {
	if opt.GroupPriceMode == domain.PriceMultiplier {
		m := 1.0
		if opt.Multiplier != nil {
			m = *opt.Multiplier
		}
		return HalfUpCents(float64(unitCents) * (m - 1))
	}
	return opt.PriceDeltaCents
}

// LineTotalCents is the rounded unit*qty extension used for every line.
func LineTotalCents(unitCents int64, qty float64) int64 {
	return HalfUpCents(float64(unitCents) * qty)
}
