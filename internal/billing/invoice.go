package billing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the payment state of an invoice.
type Status string

const (
	StatusDue     Status = "due"
	StatusOverdue Status = "overdue"
	StatusDueSoon Status = "dueSoon"
	StatusPaid    Status = "paid"
)

// LineItem is one charge on an invoice.
type LineItem struct {
	Name  string
	Price decimal.Decimal
}

// Invoice is a monthly bill for the virtual office service.
type Invoice struct {
	ID        string
	Period    string
	DueDate   time.Time
	Amount    decimal.Decimal
	Status    Status
	LineItems []LineItem
}

// Outstanding reports whether the invoice can still be selected for payment.
func (i Invoice) Outstanding() bool { return i.Status != StatusPaid }

// Matches performs the case-insensitive id/period search used by the
// invoice table.
func (i Invoice) Matches(query string) bool {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(i.ID), term) ||
		strings.Contains(strings.ToLower(i.Period), term)
}

// Filter returns the invoices matching query, preserving order.
func Filter(invoices []Invoice, query string) []Invoice {
	if strings.TrimSpace(query) == "" {
		return invoices
	}
	out := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.Matches(query) {
			out = append(out, inv)
		}
	}
	return out
}

// Source supplies a customer's invoices. Outstanding invoices are returned
// in display order; that order decides which invoice counts as "first".
type Source interface {
	Invoices(ctx context.Context) (outstanding, paid []Invoice, err error)
}

// MockSource serves the demo account's invoices with due dates relative to
// the injected clock.
type MockSource struct {
	Now func() time.Time
}

var (
	officeAddress = LineItem{Name: "Virtual Office - London Business Address", Price: decimal.NewFromInt(29)}
	mailHandling  = LineItem{Name: "Mail Handling (per month)", Price: decimal.NewFromInt(10)}
)

// Invoices implements Source.
func (m MockSource) Invoices(ctx context.Context) ([]Invoice, []Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	today := now()
	items := func() []LineItem { return []LineItem{officeAddress, mailHandling} }
	amount := decimal.NewFromInt(39)

	outstanding := []Invoice{
		{ID: "INV-2025-0901", Period: "Sep 2025", DueDate: today.AddDate(0, 0, 7), Amount: amount, Status: StatusDue, LineItems: items()},
		{ID: "INV-2025-0801", Period: "Aug 2025", DueDate: today.AddDate(0, 0, -5), Amount: amount, Status: StatusOverdue, LineItems: items()},
	}
	paid := []Invoice{
		{ID: "INV-2025-0701", Period: "Jul 2025", DueDate: time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC), Amount: amount, Status: StatusPaid, LineItems: items()},
		{ID: "INV-2025-0601", Period: "Jun 2025", DueDate: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), Amount: amount, Status: StatusPaid, LineItems: items()},
	}
	return outstanding, paid, nil
}
