package coupon

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/virtual-office/internal/pricing"
)

const (
	// CodeWelcome grants ten percent off the post-promotion base.
	CodeWelcome = "WELCOME10"
	// CodeFirstMonthFree makes one invoice free, expressed as a percentage.
	CodeFirstMonthFree = "FIRSTMONTHFREE"
)

var welcomePercent = decimal.RequireFromString("0.10")

// Kind is the closed set of coupon rules known to the billing engine.
type Kind int

const (
	KindNone Kind = iota
	KindWelcomeTenPercent
	KindFirstMonthFree
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindWelcomeTenPercent:
		return "welcome_ten_percent"
	case KindFirstMonthFree:
		return "first_month_free"
	default:
		return "unknown"
	}
}

// Parse normalises a user supplied code and classifies it.
func Parse(code string) (Kind, string) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	switch normalized {
	case "":
		return KindNone, ""
	case CodeWelcome:
		return KindWelcomeTenPercent, normalized
	case CodeFirstMonthFree:
		return KindFirstMonthFree, normalized
	default:
		return KindUnknown, normalized
	}
}

// Status describes the outcome of resolving a coupon.
type Status int

const (
	StatusAbsent Status = iota
	StatusInvalid
	StatusApplied
)

func (s Status) String() string {
	switch s {
	case StatusInvalid:
		return "invalid"
	case StatusApplied:
		return "applied"
	default:
		return "absent"
	}
}

// State is the resolved coupon value handed to the pricing engine.
type State struct {
	Status  Status
	Code    string
	Percent decimal.Decimal
}

// Absent reports a state with no coupon.
func Absent() State { return State{Status: StatusAbsent} }

// Invalid reports an unknown code.
func Invalid(code string) State { return State{Status: StatusInvalid, Code: code} }

// Applied reports a coupon granting the given fraction.
func Applied(code string, percent decimal.Decimal) State {
	return State{Status: StatusApplied, Code: code, Percent: pricing.ClampPercent(percent)}
}

// EffectivePercent is the fraction the pricing engine should apply.
func (s State) EffectivePercent() decimal.Decimal {
	if s.Status != StatusApplied {
		return decimal.Zero
	}
	return pricing.ClampPercent(s.Percent)
}

// MarshalJSON renders the state for API responses.
func (s State) MarshalJSON() ([]byte, error) {
	payload := map[string]any{"status": s.Status.String()}
	if s.Code != "" {
		payload["code"] = s.Code
	}
	if s.Status == StatusApplied {
		payload["percent"] = s.Percent.Round(4).String()
		payload["displayPercent"] = s.Percent.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	}
	return json.Marshal(payload)
}

// Context carries the selection facts a coupon may depend on.
type Context struct {
	Subtotal            decimal.Decimal
	PromotionDiscount   decimal.Decimal
	FirstSelectedAmount decimal.Decimal
	HasSelection        bool
}

// Resolve turns a free-text code into a State. It is pure: the same inputs
// always produce the same state and nothing is counted.
func Resolve(code string, ctx Context) State {
	kind, normalized := Parse(code)
	switch kind {
	case KindNone:
		return Absent()
	case KindWelcomeTenPercent:
		return Applied(normalized, welcomePercent)
	case KindFirstMonthFree:
		if !ctx.HasSelection {
			return Absent()
		}
		return Applied(normalized, firstMonthFreePercent(ctx))
	default:
		return Invalid(normalized)
	}
}

// firstMonthFreePercent expresses one invoice's value as a fraction of the
// post-promotion base, capped at 100%.
func firstMonthFreePercent(ctx Context) decimal.Decimal {
	base := ctx.Subtotal.Sub(ctx.PromotionDiscount)
	if !base.IsPositive() {
		return decimal.Zero
	}
	amount := ctx.FirstSelectedAmount
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return pricing.ClampPercent(amount.Div(base))
}
