package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotPayable is returned when a charge has no invoices or no method.
var ErrNotPayable = errors.New("select at least one invoice and a payment method")

// ChargeRequest is what billing hands to a processor once a quote is payable.
type ChargeRequest struct {
	UserID     string
	InvoiceIDs []string
	Method     Method
	Amount     decimal.Decimal
}

// Receipt confirms a charge.
type Receipt struct {
	Reference  string          `json:"reference"`
	Method     Method          `json:"method"`
	InvoiceIDs []string        `json:"invoiceIds"`
	Amount     decimal.Decimal `json:"-"`
	CreatedAt  time.Time       `json:"createdAt"`
	Message    string          `json:"message"`
}

// Processor abstracts the payment collaborator.
type Processor interface {
	Charge(ctx context.Context, req ChargeRequest) (Receipt, error)
}

// MockProcessor accepts every payable charge without contacting a gateway.
type MockProcessor struct {
	Now func() time.Time
}

// Charge implements Processor.
func (p MockProcessor) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if len(req.InvoiceIDs) == 0 || !req.Method.Chosen() {
		return Receipt{}, ErrNotPayable
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return Receipt{
		Reference:  "MOCK-" + strings.ToUpper(uuid.NewString()[:8]),
		Method:     req.Method,
		InvoiceIDs: append([]string(nil), req.InvoiceIDs...),
		Amount:     req.Amount,
		CreatedAt:  now().UTC(),
		Message:    "Payment created (mock). Thank you!",
	}, nil
}
