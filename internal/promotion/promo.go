package promotion

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/virtual-office/internal/pricing"
)

// Type selects how Value is interpreted.
type Type string

const (
	TypePercent Type = "PERCENT"
	TypeFixed   Type = "FIXED"
)

const dateLayout = "2006-01-02"

var (
	// ErrInvalid is returned when a promotion fails validation.
	ErrInvalid = errors.New("invalid promotion")
	// ErrDuplicateCode is returned when another promotion already uses the code.
	ErrDuplicateCode = errors.New("promotion code already exists")
	// ErrNotFound is returned for unknown promotion ids.
	ErrNotFound = errors.New("promotion not found")

	// ErrInactive is returned by Check when the promotion is switched off.
	ErrInactive = errors.New("promotion not active")
	// ErrNotStarted is returned by Check before the start date.
	ErrNotStarted = errors.New("promotion not started")
	// ErrExpired is returned by Check after the end date.
	ErrExpired = errors.New("promotion expired")
	// ErrUsageLimitReached is returned by Check when MaxUses is exhausted.
	ErrUsageLimitReached = errors.New("promotion usage limit reached")
	// ErrNotInAudience is returned by Check when the audience rules exclude the user.
	ErrNotInAudience = errors.New("user not targeted by promotion")
	// ErrMinimumSpendUnmet is returned by Check when lifetime spend is too low.
	ErrMinimumSpendUnmet = errors.New("promotion minimum spend not met")

	codePattern = regexp.MustCompile(`^[A-Z0-9-]{3,}$`)
)

// Promo is an admin-defined discount code.
type Promo struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	Description  string          `json:"description,omitempty"`
	Type         Type            `json:"type"`
	Value        decimal.Decimal `json:"value"`
	Start        string          `json:"start,omitempty"`
	End          string          `json:"end,omitempty"`
	MaxUses      int             `json:"maxUses,omitempty"`
	Used         int             `json:"used,omitempty"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"createdAt"`
	AllowedUsers []string        `json:"allowedUsers,omitempty"`
	NewUsersOnly bool            `json:"newUsersOnly,omitempty"`
	MinSpend     decimal.Decimal `json:"minSpendGBP"`
}

// Validate checks p against the rest of the list. The code comparison is
// case-insensitive and ignores p itself.
func Validate(p Promo, all []Promo) error {
	code := strings.TrimSpace(p.Code)
	if code == "" || !codePattern.MatchString(code) {
		return fmt.Errorf("%w: code must be at least 3 of A-Z, 0-9 or -", ErrInvalid)
	}
	if !p.Value.IsPositive() {
		return fmt.Errorf("%w: value must be greater than zero", ErrInvalid)
	}
	if p.Type != TypePercent && p.Type != TypeFixed {
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, p.Type)
	}
	for _, other := range all {
		if other.ID != p.ID && strings.EqualFold(other.Code, code) {
			return ErrDuplicateCode
		}
	}
	start, err := parseDate(p.Start)
	if err != nil {
		return fmt.Errorf("%w: start date", ErrInvalid)
	}
	end, err := parseDate(p.End)
	if err != nil {
		return fmt.Errorf("%w: end date", ErrInvalid)
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf("%w: start after end", ErrInvalid)
	}
	return nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, value)
}

// ParseUsers splits a comma or newline separated list of usernames.
func ParseUsers(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Targeting summarises the audience rules for the admin table.
func Targeting(p Promo) string {
	var chips []string
	if n := len(p.AllowedUsers); n > 0 {
		head := p.AllowedUsers
		if n > 2 {
			head = head[:2]
		}
		chip := "@" + strings.Join(head, ", ")
		if n > 2 {
			chip += fmt.Sprintf(" +%d", n-2)
		}
		chips = append(chips, chip)
	}
	if p.NewUsersOnly {
		chips = append(chips, "New users only")
	}
	if p.MinSpend.IsPositive() {
		chips = append(chips, "Min spend: "+pricing.FormatGBP(p.MinSpend))
	}
	if len(chips) == 0 {
		return "Any"
	}
	return strings.Join(chips, " · ")
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode returns a random VO- code using an alphabet without
// look-alike characters.
func GenerateCode(r *rand.Rand) string {
	var b strings.Builder
	b.WriteString("VO-")
	for i := 0; i < 6; i++ {
		b.WriteByte(codeAlphabet[r.IntN(len(codeAlphabet))])
	}
	return b.String()
}

// Audience describes the customer a promotion is checked against.
type Audience struct {
	Username      string
	NewUser       bool
	LifetimeSpend decimal.Decimal
}

// Check reports whether the promotion applies to the audience at now.
func (p Promo) Check(now time.Time, a Audience) error {
	if !p.Active {
		return ErrInactive
	}
	today := now.UTC().Format(dateLayout)
	if p.Start != "" && today < p.Start {
		return ErrNotStarted
	}
	if p.End != "" && today > p.End {
		return ErrExpired
	}
	if p.MaxUses > 0 && p.Used >= p.MaxUses {
		return ErrUsageLimitReached
	}
	if p.NewUsersOnly && !a.NewUser {
		return ErrNotInAudience
	}
	if len(p.AllowedUsers) > 0 {
		allowed := false
		for _, u := range p.AllowedUsers {
			if strings.EqualFold(u, strings.TrimSpace(a.Username)) {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrNotInAudience
		}
	}
	if a.LifetimeSpend.LessThan(p.MinSpend) {
		return ErrMinimumSpendUnmet
	}
	return nil
}

// Discount is the amount the promotion takes off amount, never more than
// amount itself.
func (p Promo) Discount(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !p.Value.IsPositive() {
		return decimal.Zero
	}
	discount := p.Value
	if p.Type == TypePercent {
		discount = pricing.Round2(amount.Mul(p.Value).Div(decimal.NewFromInt(100)))
	}
	if discount.GreaterThan(amount) {
		discount = amount
	}
	return pricing.Round2(discount)
}

// Defaults are the promotions present before an admin has saved anything.
func Defaults(now time.Time) []Promo {
	return []Promo{
		{ID: "p1", Code: "VO-WELCOME10", Description: "10% for first month", Type: TypePercent, Value: decimal.NewFromInt(10), MaxUses: 100, Used: 12, Active: true, CreatedAt: now, NewUsersOnly: true},
		{ID: "p2", Code: "VO-5GBP", Description: "£5 off first invoice", Type: TypeFixed, Value: decimal.NewFromInt(5), MaxUses: 50, Used: 5, Active: true, CreatedAt: now, AllowedUsers: []string{"alice", "bob"}},
	}
}
