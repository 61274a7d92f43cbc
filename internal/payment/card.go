package payment

import (
	"errors"
	"regexp"
	"strings"
)

// Brand names supported by the card form.
const (
	BrandVisa       = "Visa"
	BrandMastercard = "Mastercard"
)

var (
	// ErrInvalidCard is returned when submitted card details fail validation.
	ErrInvalidCard = errors.New("invalid card details")

	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
)

// Card is a saved payment card. Only the last four digits are retained.
type Card struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	Holder    string `json:"holder"`
	Expiry    string `json:"expiry"`
	IsDefault bool   `json:"isDefault"`
}

// CardInput is the add-card form payload.
type CardInput struct {
	Number string `json:"number" validate:"required"`
	Holder string `json:"holder" validate:"required,max=120"`
	Expiry string `json:"expiry" validate:"required"`
	CVV    string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

// DetectBrand returns Visa for numbers starting with 4 and Mastercard otherwise.
func DetectBrand(number string) string {
	if strings.HasPrefix(digits(number), "4") {
		return BrandVisa
	}
	return BrandMastercard
}

// NewCard validates the input and derives the stored card, dropping the full
// number and CVV.
func NewCard(id string, in CardInput) (Card, error) {
	number := digits(in.Number)
	if len(number) < 12 || len(number) > 19 {
		return Card{}, ErrInvalidCard
	}
	expiry := strings.TrimSpace(in.Expiry)
	if !expiryPattern.MatchString(expiry) {
		return Card{}, ErrInvalidCard
	}
	holder := strings.TrimSpace(in.Holder)
	if holder == "" {
		return Card{}, ErrInvalidCard
	}
	return Card{
		ID:     id,
		Brand:  DetectBrand(number),
		Last4:  number[len(number)-4:],
		Holder: holder,
		Expiry: expiry,
	}, nil
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
