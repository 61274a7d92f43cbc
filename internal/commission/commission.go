package commission

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/virtual-office/internal/pricing"
)

// Status tracks the payout of a referral commission.
type Status string

const (
	StatusDue       Status = "DUE"
	StatusScheduled Status = "SCHEDULED"
	StatusPaid      Status = "PAID"
)

// ParseStatus returns the filter status; "ALL" or empty means no filter.
func ParseStatus(value string) (Status, bool) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(value))); s {
	case StatusDue, StatusScheduled, StatusPaid:
		return s, true
	default:
		return "", false
	}
}

// ErrNotFound is returned for unknown commission ids.
var ErrNotFound = errors.New("commission not found")

// Bank holds the referrer's payout account.
type Bank struct {
	Holder   string `json:"holder"`
	BankName string `json:"bankName"`
	Account  string `json:"account"`
	SortCode string `json:"sortCode,omitempty"`
}

// Referrer is the partner earning the commission.
type Referrer struct {
	Name string `json:"name"`
	Org  string `json:"org,omitempty"`
	Bank Bank   `json:"bank"`
}

// Row is one referral commission.
type Row struct {
	ID         string          `json:"id"`
	Referrer   Referrer        `json:"referrer"`
	Client     string          `json:"client"`
	Plan       string          `json:"plan"`
	Amount     decimal.Decimal `json:"amount"`
	Rate       decimal.Decimal `json:"rate"`
	Commission decimal.Decimal `json:"commission"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	Note       string          `json:"note,omitempty"`
	TxID       string          `json:"txid,omitempty"`
}

// Earned is the commission owed on amount at rate.
func Earned(amount, rate decimal.Decimal) decimal.Decimal {
	return pricing.Round2(amount.Mul(rate))
}

var (
	referrers = []Referrer{
		{Name: "UK Biz Hub", Org: "UK Biz Hub", Bank: Bank{Holder: "UK Biz Hub Ltd", BankName: "Barclays", Account: "12345678", SortCode: "20-00-00"}},
		{Name: "John Doe", Bank: Bank{Holder: "John Doe", BankName: "Monzo", Account: "98765432"}},
		{Name: "Partner Co.", Org: "Partner Co.", Bank: Bank{Holder: "Partner Co. Ltd", BankName: "HSBC", Account: "22223333", SortCode: "40-00-00"}},
	}
	clients = []string{"Alpha Ltd", "Beta LLP", "Gamma PLC", "Delta Ltd", "Epsilon Ltd", "Zeta Ltd", "Eta Ltd", "Theta Ltd", "Iota Ltd", "Kappa Ltd"}
	plans   = []string{"Virtual Office - London", "Virtual Office - Manchester"}
	rates   = []decimal.Decimal{decimal.RequireFromString("0.20"), decimal.RequireFromString("0.15"), decimal.RequireFromString("0.10")}
)

// Mock builds n demo rows created on the days before now.
func Mock(n int, now time.Time) []Row {
	rows := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		amount := decimal.NewFromInt(int64(30 + (i%5)*10))
		rate := rates[i%3]
		status := StatusDue
		switch {
		case i%6 == 0:
			status = StatusPaid
		case i%4 == 0:
			status = StatusScheduled
		}
		row := Row{
			ID:         fmt.Sprintf("c%d", i+1),
			Referrer:   referrers[i%len(referrers)],
			Client:     clients[i%len(clients)],
			Plan:       plans[i%len(plans)],
			Amount:     amount,
			Rate:       rate,
			Commission: Earned(amount, rate),
			Status:     status,
			CreatedAt:  now.AddDate(0, 0, -(i + 2)),
		}
		if i%5 == 0 {
			row.Note = "High value client"
		}
		if i%6 == 0 {
			row.TxID = fmt.Sprintf("TX-%d", 1000+i)
		}
		rows = append(rows, row)
	}
	return rows
}

// Filter matches the term against referrer name, organisation and client.
func Filter(rows []Row, query string, status Status) []Row {
	term := strings.ToLower(strings.TrimSpace(query))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if status != "" && r.Status != status {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(r.Referrer.Name), term) &&
			!strings.Contains(strings.ToLower(r.Referrer.Org), term) &&
			!strings.Contains(strings.ToLower(r.Client), term) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Totals sums commissions per status.
type Totals struct {
	Due       decimal.Decimal `json:"due"`
	Scheduled decimal.Decimal `json:"scheduled"`
	Paid      decimal.Decimal `json:"paid"`
}

// Summarize totals the given rows.
func Summarize(rows []Row) Totals {
	var t Totals
	for _, r := range rows {
		switch r.Status {
		case StatusDue:
			t.Due = t.Due.Add(r.Commission)
		case StatusScheduled:
			t.Scheduled = t.Scheduled.Add(r.Commission)
		case StatusPaid:
			t.Paid = t.Paid.Add(r.Commission)
		}
	}
	return t
}

// Ledger holds the commission rows in memory.
type Ledger struct {
	mu   sync.RWMutex
	rows []Row
}

// NewLedger copies rows into a ledger.
func NewLedger(rows []Row) *Ledger {
	return &Ledger{rows: slices.Clone(rows)}
}

// Rows returns a snapshot.
func (l *Ledger) Rows() []Row {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.rows)
}

// Get returns one row.
func (l *Ledger) Get(id string) (Row, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return Row{}, ErrNotFound
}

// MarkPaid marks the rows paid. An empty txid keeps any existing one.
// Unknown ids are reported and nothing is changed.
func (l *Ledger) MarkPaid(ids []string, txid string) ([]Row, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := make([]int, 0, len(ids))
	for _, id := range ids {
		i := slices.IndexFunc(l.rows, func(r Row) bool { return r.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		idx = append(idx, i)
	}
	out := make([]Row, 0, len(idx))
	for _, i := range idx {
		l.rows[i].Status = StatusPaid
		if tx := strings.TrimSpace(txid); tx != "" {
			l.rows[i].TxID = tx
		}
		out = append(out, l.rows[i])
	}
	return out, nil
}

// MarkUnpaid returns a row to DUE and clears its transaction id.
func (l *Ledger) MarkUnpaid(id string) (Row, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.rows {
		if l.rows[i].ID == id {
			l.rows[i].Status = StatusDue
			l.rows[i].TxID = ""
			return l.rows[i], nil
		}
	}
	return Row{}, ErrNotFound
}

// ExportHeader is the first row of a commission export.
var ExportHeader = []string{"id", "referrer", "client", "plan", "amount", "rate", "commission", "status", "createdAt", "bankHolder", "bankName", "account", "sortCode"}

// WriteCSV writes rows with RFC 4180 quoting.
func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writer.Write([]string{
			r.ID,
			r.Referrer.Name,
			r.Client,
			r.Plan,
			pricing.Fixed(r.Amount),
			r.Rate.String(),
			pricing.Fixed(r.Commission),
			string(r.Status),
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.Referrer.Bank.Holder,
			r.Referrer.Bank.BankName,
			r.Referrer.Bank.Account,
			r.Referrer.Bank.SortCode,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
