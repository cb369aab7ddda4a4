package domain

import "time"

// DiscountType represents how a promo code computes its discount.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

// PromoCode is a discount rule with a validity window, usage cap, and
// minimum-order threshold.
type PromoCode struct {
	Code         string
	Type         DiscountType
	Value        int64 // percent for PERCENTAGE, amount for FIXED
	MaxDiscount  int64 // 0 means uncapped
	MinOrder     int64 // minimum order subtotal to qualify
	UsageLimit   int64 // 0 means unlimited
	UsedCount    int64
	Active       bool
	ValidFrom    time.Time
	ValidUntil   time.Time
}

// EligibleAt reports whether the promo can be applied to an order with
// the given subtotal at the given time. The usage-cap check here is
// advisory; the authoritative check is the atomic usage increment.
func (p *PromoCode) EligibleAt(subtotal int64, at time.Time) bool {
	if !p.Active {
		return false
	}
	if at.Before(p.ValidFrom) || at.After(p.ValidUntil) {
		return false
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return false
	}
	return subtotal >= p.MinOrder
}
