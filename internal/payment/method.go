package payment

import "strings"

// Method is the payment channel chosen at checkout.
type Method string

const (
	MethodNone   Method = ""
	MethodCard   Method = "card"
	MethodBank   Method = "bank"
	MethodPayPal Method = "paypal"
)

// ParseMethod normalises a submitted method. Unknown values yield MethodNone.
func ParseMethod(value string) Method {
	switch Method(strings.ToLower(strings.TrimSpace(value))) {
	case MethodCard:
		return MethodCard
	case MethodBank:
		return MethodBank
	case MethodPayPal:
		return MethodPayPal
	default:
		return MethodNone
	}
}

// Chosen reports whether a method has been selected.
func (m Method) Chosen() bool { return m != MethodNone }

func (m Method) String() string {
	if m == MethodNone {
		return "none"
	}
	return string(m)
}
