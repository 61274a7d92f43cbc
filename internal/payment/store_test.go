package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/virtual-office/internal/common"
	"github.com/noah-isme/virtual-office/internal/lock"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	n := 0
	return &Store{
		Client: client,
		Locker: lock.Locker{Client: client, Prefix: "test:", RetryBackoff: time.Millisecond},
		Prefix: "test:",
		Log:    zerolog.Nop(),
		NewID: func() string {
			n++
			return fmt.Sprintf("card-%d", n)
		},
	}, mr
}

var visa = CardInput{Number: "4242 4242 4242 4242", Holder: "Ada", Expiry: "12/28", CVV: "123"}
var master = CardInput{Number: "5522 8888 2222 8888", Holder: "Ada", Expiry: "06/27", CVV: "456"}

func TestParseMethod(t *testing.T) {
	assert.Equal(t, MethodCard, ParseMethod("Card"))
	assert.Equal(t, MethodBank, ParseMethod(" bank "))
	assert.Equal(t, MethodPayPal, ParseMethod("paypal"))
	assert.Equal(t, MethodNone, ParseMethod("cash"))
	assert.False(t, MethodNone.Chosen())
	assert.Equal(t, "none", MethodNone.String())
}

func TestNewCardDropsSensitiveFields(t *testing.T) {
	card, err := NewCard("x", visa)
	require.NoError(t, err)
	assert.Equal(t, BrandVisa, card.Brand)
	assert.Equal(t, "4242", card.Last4)

	card, err = NewCard("y", master)
	require.NoError(t, err)
	assert.Equal(t, BrandMastercard, card.Brand)

	_, err = NewCard("z", CardInput{Number: "123", Holder: "A", Expiry: "12/28", CVV: "123"})
	assert.ErrorIs(t, err, ErrInvalidCard)
	_, err = NewCard("z", CardInput{Number: "4242424242424242", Holder: "A", Expiry: "13/28", CVV: "123"})
	assert.ErrorIs(t, err, ErrInvalidCard)
}

func TestStoreFirstCardIsDefault(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, "u1", visa)
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := store.Add(ctx, "u1", master)
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	raw, err := mr.Get("test:payment-methods:u1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "4242 4242")
	assert.NotContains(t, raw, "cvv")
}

func TestStoreRemove(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.Add(ctx, "u1", visa)
	require.NoError(t, err)

	_, err = store.Remove(ctx, "u1", "card-1")
	assert.ErrorIs(t, err, ErrLastMethod)

	_, err = store.Add(ctx, "u1", master)
	require.NoError(t, err)
	cards, err := store.Remove(ctx, "u1", "card-1")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.True(t, cards[0].IsDefault)

	_, err = store.Remove(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestStoreSetDefault(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Seed(ctx, "u1", DemoCards()))

	cards, err := store.SetDefault(ctx, "u1", "c2")
	require.NoError(t, err)
	defaults := 0
	for _, c := range cards {
		if c.IsDefault {
			defaults++
			assert.Equal(t, "c2", c.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestStoreCorruptedDocument(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set("test:payment-methods:u1", "{nope"))
	cards, err := store.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestMockProcessor(t *testing.T) {
	fixed := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	p := MockProcessor{Now: func() time.Time { return fixed }}

	_, err := p.Charge(context.Background(), ChargeRequest{InvoiceIDs: []string{"INV-1"}})
	assert.ErrorIs(t, err, ErrNotPayable)

	receipt, err := p.Charge(context.Background(), ChargeRequest{InvoiceIDs: []string{"INV-1"}, Method: MethodBank, Amount: decimal.RequireFromString("46.80")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(receipt.Reference, "MOCK-"))
	assert.Equal(t, fixed, receipt.CreatedAt)
}

func TestHandlerRemoveLastCard(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Add(context.Background(), "u1", visa)
	require.NoError(t, err)

	h := &Handler{Store: store}
	r := chi.NewRouter()
	r.Delete("/payment-methods/{id}", h.Remove)

	req := httptest.NewRequest(http.MethodDelete, "/payment-methods/card-1", nil)
	req = req.WithContext(common.WithUserID(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "LAST_PAYMENT_METHOD")
}

func TestHandlerAddValidates(t *testing.T) {
	store, _ := newTestStore(t)
	h := &Handler{Store: store}

	req := httptest.NewRequest(http.MethodPost, "/payment-methods", strings.NewReader(`{"number":"4242424242424242","holder":"Ada","expiry":"12/28"}`))
	req = req.WithContext(common.WithUserID(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	h.Add(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")

	req = httptest.NewRequest(http.MethodPost, "/payment-methods", strings.NewReader(`{"number":"4242424242424242","holder":"Ada","expiry":"12/28","cvv":"123"}`))
	req = req.WithContext(common.WithUserID(req.Context(), "u1"))
	rec = httptest.NewRecorder()
	h.Add(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isDefault":true`)
}

func TestHandlerRequiresUser(t *testing.T) {
	store, _ := newTestStore(t)
	h := &Handler{Store: store}
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/payment-methods", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
