package pricing

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier identifies the prepayment promotion chosen for a payment.
type Tier string

const (
	TierNone        Tier = "none"
	TierThreeMonth  Tier = "threeMonth"
	TierTwelveMonth Tier = "twelveMonth"
)

var (
	// VATRate is the UK standard rate applied to the discounted base.
	VATRate = decimal.RequireFromString("0.20")

	threeMonthPercent  = decimal.RequireFromString("0.10")
	twelveMonthPercent = decimal.RequireFromString("0.20")
)

// ParseTier maps a stored or submitted tier name onto a Tier. Unrecognised
// values resolve to TierNone.
func ParseTier(value string) Tier {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "threemonth", "three_month", "p3":
		return TierThreeMonth
	case "twelvemonth", "twelve_month", "p12":
		return TierTwelveMonth
	default:
		return TierNone
	}
}

// Percent returns the discount fraction granted by the tier.
func (t Tier) Percent() decimal.Decimal {
	switch t {
	case TierThreeMonth:
		return threeMonthPercent
	case TierTwelveMonth:
		return twelveMonthPercent
	default:
		return decimal.Zero
	}
}

// Result aggregates the derived pricing fields. Every field is rounded to
// two decimal places.
type Result struct {
	Subtotal          decimal.Decimal
	PromotionDiscount decimal.Decimal
	CouponDiscount    decimal.Decimal
	VAT               decimal.Decimal
	Total             decimal.Decimal
}

// Payable reports whether there is anything to charge for.
func (r Result) Payable() bool {
	return r.Subtotal.IsPositive()
}

// Compute derives the pricing fields for the given invoice amounts. Each
// step is rounded before it feeds the next one; the discount bases depend on
// that order.
func Compute(amounts []decimal.Decimal, tier Tier, couponPercent decimal.Decimal) Result {
	var sum decimal.Decimal
	for _, amount := range amounts {
		if !amount.IsPositive() {
			continue
		}
		sum = sum.Add(amount)
	}
	subtotal := Round2(sum)
	if subtotal.IsZero() {
		return Result{
			Subtotal:          decimal.Zero,
			PromotionDiscount: decimal.Zero,
			CouponDiscount:    decimal.Zero,
			VAT:               decimal.Zero,
			Total:             decimal.Zero,
		}
	}

	promotionDiscount := Round2(subtotal.Mul(tier.Percent()))
	afterPromotion := subtotal.Sub(promotionDiscount)

	couponDiscount := Round2(afterPromotion.Mul(ClampPercent(couponPercent)))
	taxable := afterPromotion.Sub(couponDiscount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	vat := Round2(taxable.Mul(VATRate))
	total := Round2(taxable.Add(vat))
	return Result{
		Subtotal:          subtotal,
		PromotionDiscount: promotionDiscount,
		CouponDiscount:    couponDiscount,
		VAT:               vat,
		Total:             total,
	}
}

// InvoiceTotals returns the breakdown for a single invoice without any
// discounts applied.
func InvoiceTotals(amount decimal.Decimal) Result {
	return Compute([]decimal.Decimal{amount}, TierNone, decimal.Zero)
}

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ClampPercent bounds a discount fraction to [0, 1].
func ClampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return p
}

// AmountFromFloat converts a float amount, mapping NaN, infinities and
// negative values to zero.
func AmountFromFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
