package pricing

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shopspring/decimal"
)

var gbPrinter = message.NewPrinter(language.BritishEnglish)

// Fixed renders an amount with exactly two decimals for API payloads.
func Fixed(d decimal.Decimal) string {
	return Round2(d).StringFixed(2)
}

// FormatGBP renders an amount as a British pound display string.
func FormatGBP(d decimal.Decimal) string {
	f, _ := Round2(d).Float64()
	return gbPrinter.Sprint(currency.Symbol(currency.GBP.Amount(f)))
}
