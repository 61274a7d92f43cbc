package billing

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/virtual-office/internal/common"
	"github.com/noah-isme/virtual-office/internal/coupon"
	"github.com/noah-isme/virtual-office/internal/payment"
	"github.com/noah-isme/virtual-office/internal/pricing"
)

// Handler exposes the billing endpoints.
type Handler struct {
	Svc *Service
}

type lineItemView struct {
	Name         string `json:"name"`
	Price        string `json:"price"`
	PriceDisplay string `json:"priceDisplay"`
}

type invoiceView struct {
	ID             string         `json:"id"`
	Period         string         `json:"period"`
	DueDate        time.Time      `json:"dueDate"`
	DueDateDisplay string         `json:"dueDateDisplay"`
	Amount         string         `json:"amount"`
	AmountDisplay  string         `json:"amountDisplay"`
	Status         Status         `json:"status"`
	LineItems      []lineItemView `json:"lineItems,omitempty"`
}

type totalsView struct {
	Subtotal          string `json:"subtotal"`
	PromotionDiscount string `json:"promotionDiscount"`
	CouponDiscount    string `json:"couponDiscount"`
	VAT               string `json:"vat"`
	Total             string `json:"total"`
	TotalDisplay      string `json:"totalDisplay"`
}

type quoteView struct {
	Selected         []string       `json:"selected"`
	ItemCount        int            `json:"itemCount"`
	Tier             pricing.Tier   `json:"tier"`
	PromotionPercent string         `json:"promotionPercent"`
	Coupon           coupon.State   `json:"coupon"`
	PaymentMethod    payment.Method `json:"paymentMethod"`
	Totals           totalsView     `json:"totals"`
	Payable          bool           `json:"payable"`
}

func toInvoiceView(inv Invoice, withItems bool) invoiceView {
	v := invoiceView{
		ID:             inv.ID,
		Period:         inv.Period,
		DueDate:        inv.DueDate.UTC(),
		DueDateDisplay: inv.DueDate.Format("02 Jan 2006"),
		Amount:         pricing.Fixed(inv.Amount),
		AmountDisplay:  pricing.FormatGBP(inv.Amount),
		Status:         inv.Status,
	}
	if withItems {
		for _, item := range inv.LineItems {
			v.LineItems = append(v.LineItems, lineItemView{
				Name:         item.Name,
				Price:        pricing.Fixed(item.Price),
				PriceDisplay: pricing.FormatGBP(item.Price),
			})
		}
	}
	return v
}

func toTotalsView(r pricing.Result) totalsView {
	return totalsView{
		Subtotal:          pricing.Fixed(r.Subtotal),
		PromotionDiscount: pricing.Fixed(r.PromotionDiscount),
		CouponDiscount:    pricing.Fixed(r.CouponDiscount),
		VAT:               pricing.Fixed(r.VAT),
		Total:             pricing.Fixed(r.Total),
		TotalDisplay:      pricing.FormatGBP(r.Total),
	}
}

func toQuoteView(q Quote) quoteView {
	return quoteView{
		Selected:         q.SelectedIDs(),
		ItemCount:        len(q.Invoices),
		Tier:             q.Tier,
		PromotionPercent: q.PromotionPercent.StringFixed(2),
		Coupon:           q.Coupon,
		PaymentMethod:    q.Method,
		Totals:           toTotalsView(q.Pricing),
		Payable:          q.Payable,
	}
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "BILLING_NOT_CONFIGURED", "billing unavailable", nil)
		return false
	}
	return true
}

// ListInvoices handles GET /billing/invoices.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	page, perPage := common.ParsePagination(r, common.DefaultPageSize)
	res, err := h.Svc.List(r.Context(), ListFilter{
		Status:  r.URL.Query().Get("status"),
		Query:   r.URL.Query().Get("q"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.Svc.Log.Error().Err(err).Msg("list invoices")
		common.JSONError(w, http.StatusBadGateway, "BILLING_SOURCE_FAILED", "could not load invoices", nil)
		return
	}
	items := make([]invoiceView, 0, len(res.Items))
	for _, inv := range res.Items {
		items = append(items, toInvoiceView(inv, false))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": res.Pagination})
}

// GetInvoice handles GET /billing/invoices/{id}.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	inv, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found", nil)
			return
		}
		common.JSONError(w, http.StatusBadGateway, "BILLING_SOURCE_FAILED", "could not load invoice", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"invoice": toInvoiceView(inv, true),
		"totals":  toTotalsView(pricing.InvoiceTotals(inv.Amount)),
	})
}

func decodeQuote(w http.ResponseWriter, r *http.Request) (QuoteRequest, bool) {
	var req QuoteRequest
	if r.ContentLength == 0 {
		return req, true
	}
	if !common.DecodeAndValidate(w, r, &req) {
		return req, false
	}
	return req, true
}

// Quote handles POST /billing/quote. An invalid coupon is reported in the
// payload, not as an error status.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	req, ok := decodeQuote(w, r)
	if !ok {
		return
	}
	quote, err := h.Svc.Quote(r.Context(), req)
	if err != nil {
		h.Svc.Log.Error().Err(err).Msg("quote")
		common.JSONError(w, http.StatusBadGateway, "BILLING_SOURCE_FAILED", "could not load invoices", nil)
		return
	}
	common.JSON(w, http.StatusOK, toQuoteView(quote))
}

// Pay handles POST /billing/pay.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	req, ok := decodeQuote(w, r)
	if !ok {
		return
	}
	quote, receipt, err := h.Svc.Pay(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, payment.ErrNotPayable) {
			common.JSONError(w, http.StatusUnprocessableEntity, "NOT_PAYABLE", err.Error(), toQuoteView(quote))
			return
		}
		h.Svc.Log.Error().Err(err).Str("user_id", userID).Msg("pay")
		common.JSONError(w, http.StatusBadGateway, "PAYMENT_FAILED", "payment could not be created", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"quote":   toQuoteView(quote),
		"receipt": receipt,
	})
}
