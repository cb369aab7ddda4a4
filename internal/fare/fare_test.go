package fare

import (
	"testing"
	"time"

	"delivery/internal/domain"
)

func TestQuote_CarBreakdown(t *testing.T) {
	// 10km at 12/km and 20min at 1.5/min over the CAR base of 80.
	b, ok := Quote(domain.VehicleTierCar, 10000, 1200)
	if !ok {
		t.Fatal("expected CAR to have a rate entry")
	}

	if b.Base != 80 {
		t.Errorf("base = %d, want 80", b.Base)
	}
	if b.DistanceFare != 120 {
		t.Errorf("distance fare = %d, want 120", b.DistanceFare)
	}
	if b.TimeFare != 30 {
		t.Errorf("time fare = %d, want 30", b.TimeFare)
	}
	if b.Total != 230 {
		t.Errorf("total = %d, want 230", b.Total)
	}
}

func TestQuote_Deterministic(t *testing.T) {
	first, _ := Quote(domain.VehicleTierBike, 3456, 789)
	for i := 0; i < 100; i++ {
		again, _ := Quote(domain.VehicleTierBike, 3456, 789)
		if again != first {
			t.Fatalf("quote changed between runs: %+v vs %+v", again, first)
		}
	}
}

func TestQuote_RoundsPerLineItem(t *testing.T) {
	// 1.25km * 8/km = 10 exactly; 90s = 1.5min * 1/min = 1.5 rounds to 2.
	// Per-item rounding means the total is 40+10+2, not round(51.5).
	b, _ := Quote(domain.VehicleTierBike, 1250, 90)
	if b.DistanceFare != 10 || b.TimeFare != 2 {
		t.Fatalf("line items = %d/%d, want 10/2", b.DistanceFare, b.TimeFare)
	}
	if b.Total != 52 {
		t.Errorf("total = %d, want 52", b.Total)
	}
}

func TestQuote_UnknownTier(t *testing.T) {
	if _, ok := Quote(domain.VehicleTier("SCOOTER"), 1000, 60); ok {
		t.Error("expected unknown tier to be rejected")
	}
}

func TestRateFor(t *testing.T) {
	rate, ok := RateFor(domain.VehicleTierCar)
	if !ok {
		t.Fatal("expected CAR to have a rate entry")
	}
	if rate.Base != 80 || rate.PerKm != 12 || rate.PerMinute != 1.5 {
		t.Errorf("CAR rate = %+v, want base 80, 12/km, 1.5/min", rate)
	}

	if _, ok := RateFor(domain.VehicleTier("SCOOTER")); ok {
		t.Error("expected unknown tier to have no rate entry")
	}
}

func TestApplyDiscount_PercentageCapped(t *testing.T) {
	got := ApplyDiscount(1000, domain.DiscountTypePercentage, 50, 100)
	if got != 100 {
		t.Errorf("discount = %d, want 100 (raw 500 capped)", got)
	}
	if after := 1000 - got; after != 900 {
		t.Errorf("total after discount = %d, want 900", after)
	}
}

func TestApplyDiscount_PercentageUncapped(t *testing.T) {
	if got := ApplyDiscount(1000, domain.DiscountTypePercentage, 25, 0); got != 250 {
		t.Errorf("discount = %d, want 250", got)
	}
}

func TestApplyDiscount_FixedNeverExceedsTotal(t *testing.T) {
	if got := ApplyDiscount(120, domain.DiscountTypeFixed, 500, 0); got != 120 {
		t.Errorf("discount = %d, want clamped to 120", got)
	}
}

func TestApplyDiscount_UnknownType(t *testing.T) {
	if got := ApplyDiscount(1000, domain.DiscountType("BOGO"), 50, 0); got != 0 {
		t.Errorf("discount = %d, want 0 for unknown type", got)
	}
}

func TestPromoDiscount_Eligibility(t *testing.T) {
	now := time.Now()
	promo := &domain.PromoCode{
		Code:       "SAVE10",
		Type:       domain.DiscountTypePercentage,
		Value:      10,
		MinOrder:   200,
		UsageLimit: 5,
		Active:     true,
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(time.Hour),
	}

	if d, ok := PromoDiscount(promo, 500, now); !ok || d != 50 {
		t.Errorf("eligible promo = (%d, %v), want (50, true)", d, ok)
	}

	// Below the minimum-order threshold.
	if _, ok := PromoDiscount(promo, 150, now); ok {
		t.Error("expected promo below min order to be ineligible")
	}

	// Outside the validity window.
	if _, ok := PromoDiscount(promo, 500, now.Add(2*time.Hour)); ok {
		t.Error("expected expired promo to be ineligible")
	}

	// Usage cap reached.
	promo.UsedCount = 5
	if _, ok := PromoDiscount(promo, 500, now); ok {
		t.Error("expected exhausted promo to be ineligible")
	}

	// Inactive.
	promo.UsedCount = 0
	promo.Active = false
	if _, ok := PromoDiscount(promo, 500, now); ok {
		t.Error("expected inactive promo to be ineligible")
	}
}
