package reminder

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/virtual-office/internal/billing"
)

// DefaultWindowDays is how far ahead the due-soon list looks.
const DefaultWindowDays = 7

// DueClient is an outstanding invoice owned by a client account.
type DueClient struct {
	ID        string          `json:"id"`
	Client    string          `json:"client"`
	InvoiceID string          `json:"invoiceId"`
	DueAt     time.Time       `json:"dueAt"`
	Amount    decimal.Decimal `json:"amount"`
	Manager   string          `json:"manager"`
}

// WithinNextDays reports whether due falls between now and now+days.
func WithinNextDays(due, now time.Time, days int) bool {
	diff := due.Sub(now)
	return diff >= 0 && diff <= time.Duration(days)*24*time.Hour
}

// DueSoon keeps the entries due within the window, earliest first.
func DueSoon(items []DueClient, now time.Time, days int) []DueClient {
	out := make([]DueClient, 0, len(items))
	for _, it := range items {
		if WithinNextDays(it.DueAt, now, days) {
			out = append(out, it)
		}
	}
	slices.SortStableFunc(out, func(a, b DueClient) int { return a.DueAt.Compare(b.DueAt) })
	return out
}

// Search matches client, manager and invoice id.
func Search(items []DueClient, query string) []DueClient {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return items
	}
	out := make([]DueClient, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Client), term) ||
			strings.Contains(strings.ToLower(it.Manager), term) ||
			strings.Contains(strings.ToLower(it.InvoiceID), term) {
			out = append(out, it)
		}
	}
	return out
}

// FromInvoices turns a client's outstanding invoices into due entries.
func FromInvoices(client, manager string, invoices []billing.Invoice) []DueClient {
	out := make([]DueClient, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.Outstanding() {
			continue
		}
		out = append(out, DueClient{
			ID:        inv.ID,
			Client:    client,
			InvoiceID: inv.ID,
			DueAt:     inv.DueDate,
			Amount:    inv.Amount,
			Manager:   manager,
		})
	}
	return out
}

var (
	mockClients  = []string{"Alpha Ltd", "Beta LLP", "Gamma PLC", "Delta Ltd", "Epsilon Ltd", "Zeta Ltd", "Eta Ltd", "Theta Ltd", "Iota Ltd", "Kappa Ltd"}
	mockManagers = []string{"Alice Johnson", "Bob Lee", "Carol Tran", "David Kim"}
)

// MockDueClients spreads n invoices from three days ago to eight days ahead.
func MockDueClients(now time.Time, n int) []DueClient {
	out := make([]DueClient, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, DueClient{
			ID:        fmt.Sprintf("c%d", i+1),
			Client:    mockClients[i%len(mockClients)],
			InvoiceID: fmt.Sprintf("INV-%d", 3000+i),
			DueAt:     now.AddDate(0, 0, i%12-3),
			Amount:    decimal.NewFromInt(int64(49 + (i%5)*10)),
			Manager:   mockManagers[i%len(mockManagers)],
		})
	}
	slices.SortStableFunc(out, func(a, b DueClient) int { return a.DueAt.Compare(b.DueAt) })
	return out
}
