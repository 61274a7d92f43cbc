package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/virtual-office/internal/common"
	"github.com/noah-isme/virtual-office/internal/coupon"
	"github.com/noah-isme/virtual-office/internal/obs"
	"github.com/noah-isme/virtual-office/internal/payment"
	"github.com/noah-isme/virtual-office/internal/pricing"
)

// ErrNotFound is returned when an invoice id is unknown.
var ErrNotFound = errors.New("invoice not found")

// QuoteRequest describes the billing form. A nil Selected means the default
// selection (all outstanding invoices).
type QuoteRequest struct {
	Selected      *[]string `json:"selected" validate:"omitempty,max=200,dive,max=64"`
	Tier          string    `json:"tier" validate:"max=32"`
	Coupon        string    `json:"coupon" validate:"max=64"`
	PaymentMethod string    `json:"paymentMethod" validate:"omitempty,oneof=card bank paypal"`
}

// Quote is the payment summary for a selection.
type Quote struct {
	Invoices         []Invoice
	Tier             pricing.Tier
	PromotionPercent decimal.Decimal
	Coupon           coupon.State
	Pricing          pricing.Result
	Method           payment.Method
	Payable          bool
}

// SelectedIDs lists the quoted invoice ids in outstanding order.
func (q Quote) SelectedIDs() []string {
	ids := make([]string, 0, len(q.Invoices))
	for _, inv := range q.Invoices {
		ids = append(ids, inv.ID)
	}
	return ids
}

// ListFilter narrows the invoice listing.
type ListFilter struct {
	Status  string
	Query   string
	Page    int
	PerPage int
}

// ListResult is one page of invoices.
type ListResult struct {
	Items      []Invoice
	Pagination common.Pagination
}

// Service answers billing queries against a Source.
type Service struct {
	Source    Source
	Processor payment.Processor
	Log       zerolog.Logger
}

func (s *Service) invoices(ctx context.Context) ([]Invoice, []Invoice, error) {
	if s == nil || s.Source == nil {
		return nil, nil, errors.New("billing service not configured")
	}
	outstanding, paid, err := s.Source.Invoices(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load invoices: %w", err)
	}
	return outstanding, paid, nil
}

// Quote prices the requested selection.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	ctx, span := otel.Tracer("billing.Service").Start(ctx, "BillingService.Quote")
	defer span.End()
	start := time.Now()

	outstanding, _, err := s.invoices(ctx)
	if err != nil {
		return Quote{}, err
	}

	var sel *Selection
	if req.Selected == nil {
		sel = NewSelection(outstanding)
	} else {
		sel = NewEmptySelection(outstanding)
		for _, id := range *req.Selected {
			sel.Select(strings.TrimSpace(id))
		}
	}
	quote := Price(sel, pricing.ParseTier(req.Tier), req.Coupon, payment.ParseMethod(req.PaymentMethod))

	span.SetAttributes(
		attribute.Int("billing.selected", len(quote.Invoices)),
		attribute.String("billing.tier", string(quote.Tier)),
		attribute.String("billing.coupon", quote.Coupon.Status.String()),
		attribute.Bool("billing.payable", quote.Payable),
	)
	if obs.BillingQuotesTotal != nil {
		obs.BillingQuotesTotal.WithLabelValues(string(quote.Tier), quote.Coupon.Status.String()).Inc()
	}
	if obs.QuoteLatency != nil {
		obs.QuoteLatency.Observe(obs.DurationMillis(time.Since(start)))
	}
	return quote, nil
}

// Price derives a quote from a selection. The coupon is resolved against the
// current selection and tier every time, so it always tracks them.
func Price(sel *Selection, tier pricing.Tier, code string, method payment.Method) Quote {
	invoices := sel.Invoices()
	amounts := make([]decimal.Decimal, 0, len(invoices))
	for _, inv := range invoices {
		amounts = append(amounts, inv.Amount)
	}

	base := pricing.Compute(amounts, tier, decimal.Zero)
	couponCtx := coupon.Context{
		Subtotal:          base.Subtotal,
		PromotionDiscount: base.PromotionDiscount,
		HasSelection:      len(invoices) > 0,
	}
	if len(invoices) > 0 {
		couponCtx.FirstSelectedAmount = invoices[0].Amount
	}
	state := coupon.Resolve(code, couponCtx)

	return Quote{
		Invoices:         invoices,
		Tier:             tier,
		PromotionPercent: tier.Percent(),
		Coupon:           state,
		Pricing:          pricing.Compute(amounts, tier, state.EffectivePercent()),
		Method:           method,
		Payable:          len(invoices) > 0 && method.Chosen(),
	}
}

// Pay charges a payable quote through the processor.
func (s *Service) Pay(ctx context.Context, userID string, req QuoteRequest) (Quote, payment.Receipt, error) {
	quote, err := s.Quote(ctx, req)
	if err != nil {
		return Quote{}, payment.Receipt{}, err
	}
	result := "rejected"
	defer func() {
		if obs.BillingPaymentsTotal != nil {
			obs.BillingPaymentsTotal.WithLabelValues(quote.Method.String(), result).Inc()
		}
	}()
	if !quote.Payable {
		return quote, payment.Receipt{}, payment.ErrNotPayable
	}
	if s.Processor == nil {
		result = "error"
		return quote, payment.Receipt{}, errors.New("payment processor not configured")
	}
	receipt, err := s.Processor.Charge(ctx, payment.ChargeRequest{
		UserID:     userID,
		InvoiceIDs: quote.SelectedIDs(),
		Method:     quote.Method,
		Amount:     quote.Pricing.Total,
	})
	if err != nil {
		result = "error"
		return quote, payment.Receipt{}, fmt.Errorf("charge: %w", err)
	}
	result = "ok"
	s.Log.Info().
		Str("user_id", userID).
		Str("reference", receipt.Reference).
		Str("method", quote.Method.String()).
		Str("total", pricing.Fixed(quote.Pricing.Total)).
		Strs("invoices", receipt.InvoiceIDs).
		Msg("billing payment created")
	return quote, receipt, nil
}

// List returns a filtered page of invoices. Status may be empty (all),
// "outstanding", "paid" or a specific invoice status.
func (s *Service) List(ctx context.Context, f ListFilter) (ListResult, error) {
	outstanding, paid, err := s.invoices(ctx)
	if err != nil {
		return ListResult{}, err
	}
	var pool []Invoice
	switch status := strings.TrimSpace(f.Status); status {
	case "":
		pool = append(append(pool, outstanding...), paid...)
	case "outstanding":
		pool = outstanding
	case string(StatusPaid):
		pool = paid
	default:
		for _, inv := range outstanding {
			if string(inv.Status) == status {
				pool = append(pool, inv)
			}
		}
	}
	pool = Filter(pool, f.Query)
	start, end, meta := common.Paginate(len(pool), f.Page, f.PerPage)
	return ListResult{Items: pool[start:end], Pagination: meta}, nil
}

// Get looks up one invoice, outstanding or paid.
func (s *Service) Get(ctx context.Context, id string) (Invoice, error) {
	outstanding, paid, err := s.invoices(ctx)
	if err != nil {
		return Invoice{}, err
	}
	id = strings.TrimSpace(id)
	for _, group := range [][]Invoice{outstanding, paid} {
		for _, inv := range group {
			if strings.EqualFold(inv.ID, id) {
				return inv, nil
			}
		}
	}
	return Invoice{}, ErrNotFound
}
