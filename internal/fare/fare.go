package fare

import (
	"math"
	"time"

	"delivery/internal/domain"
)

// Rate holds the pricing parameters for one vehicle tier. Amounts are in
// whole currency units; there is no fractional currency.
type Rate struct {
	Base      int64
	PerKm     float64
	PerMinute float64
}

// rates is the tier pricing table. Rates are configuration, not code,
// in spirit: they live in one table so a tier never has per-call-site
// pricing.
var rates = map[domain.VehicleTier]Rate{
	domain.VehicleTierBike:  {Base: 40, PerKm: 8, PerMinute: 1},
	domain.VehicleTierCar:   {Base: 80, PerKm: 12, PerMinute: 1.5},
	domain.VehicleTierVan:   {Base: 150, PerKm: 18, PerMinute: 2},
	domain.VehicleTierTruck: {Base: 300, PerKm: 25, PerMinute: 3},
}

// Breakdown is a computed fare, itemized. Each line item is rounded
// independently so the total is the sum of the displayed items.
type Breakdown struct {
	Base         int64
	DistanceFare int64
	TimeFare     int64
	Total        int64
}

// RateFor returns the rate table entry for a tier.
func RateFor(tier domain.VehicleTier) (Rate, bool) {
	r, ok := rates[tier]
	return r, ok
}

// Quote computes the fare for a tier over the given distance and
// duration. It is a pure function: identical inputs always produce
// identical output.
func Quote(tier domain.VehicleTier, distanceMeters, durationSeconds int64) (Breakdown, bool) {
	r, ok := rates[tier]
	if !ok {
		return Breakdown{}, false
	}

	km := float64(distanceMeters) / 1000.0
	minutes := float64(durationSeconds) / 60.0

	b := Breakdown{
		Base:         r.Base,
		DistanceFare: int64(math.Round(km * r.PerKm)),
		TimeFare:     int64(math.Round(minutes * r.PerMinute)),
	}
	b.Total = b.Base + b.DistanceFare + b.TimeFare
	return b, true
}

// ApplyDiscount computes the discount a promo rule takes off a total.
// PERCENTAGE discounts are value% of the total, FIXED discounts are the
// value itself; either is capped at maxDiscount when set, and never
// exceeds the total so the fare cannot go negative.
func ApplyDiscount(total int64, kind domain.DiscountType, value, maxDiscount int64) int64 {
	var discount int64
	switch kind {
	case domain.DiscountTypePercentage:
		discount = int64(math.Round(float64(total) * float64(value) / 100.0))
	case domain.DiscountTypeFixed:
		discount = value
	default:
		return 0
	}

	if maxDiscount > 0 && discount > maxDiscount {
		discount = maxDiscount
	}
	if discount > total {
		discount = total
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// PromoDiscount returns the discount a promo takes off a subtotal, or 0
// with ok=false when the promo is not eligible at the given time.
func PromoDiscount(p *domain.PromoCode, subtotal int64, at time.Time) (int64, bool) {
	if p == nil || !p.EligibleAt(subtotal, at) {
		return 0, false
	}
	return ApplyDiscount(subtotal, p.Type, p.Value, p.MaxDiscount), true
}
