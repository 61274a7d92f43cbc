package promotion

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

	"github.com/noah-isme/virtual-office/internal/lock"
)

var testNow = time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := func() time.Time { return testNow }
	n := 0
	return &Service{
		Repo:   &RedisRepository{Client: client, Prefix: "test:", Log: zerolog.Nop(), Now: clock},
		Locker: lock.Locker{Client: client, Prefix: "test:", RetryBackoff: time.Millisecond},
		Log:    zerolog.Nop(),
		Now:    clock,
		NewID: func() string {
			n++
			return fmt.Sprintf("promo-%d", n)
		},
	}, mr
}

func TestRepositorySeedsDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	promos, err := svc.Repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, promos, 2)
	assert.Equal(t, "VO-WELCOME10", promos[0].Code)
}

func TestRepositoryCorruptedDocument(t *testing.T) {
	svc, mr := newTestService(t)
	require.NoError(t, mr.Set("test:promotions", "[{"))
	promos, err := svc.Repo.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, promos, 2)
}

func TestCreatePrependsAndPersists(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, Input{Code: " vo-autumn ", Type: TypePercent, Value: decimal.NewFromInt(15), Users: "alice,\nbob"})
	require.NoError(t, err)
	assert.Equal(t, "VO-AUTUMN", p.Code)
	assert.Equal(t, []string{"alice", "bob"}, p.AllowedUsers)
	assert.True(t, p.Active)
	assert.Equal(t, testNow, p.CreatedAt)

	res, err := svc.List(ctx, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.Equal(t, "promo-1", res.Items[0].ID)
	assert.True(t, mr.Exists("test:promotions"))

	_, err = svc.Create(ctx, Input{Code: "vo-autumn", Type: TypeFixed, Value: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestUpdateKeepsIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Update(ctx, "p2", Input{Code: "VO-5GBP", Type: TypeFixed, Value: decimal.NewFromInt(7)})
	require.NoError(t, err)
	assert.Equal(t, 5, p.Used)
	assert.True(t, p.Value.Equal(decimal.NewFromInt(7)))

	_, err = svc.Update(ctx, "missing", Input{Code: "VO-X1", Type: TypeFixed, Value: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleAndRemove(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.ToggleActive(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, p.Active)

	require.NoError(t, svc.Remove(ctx, "p1"))
	assert.ErrorIs(t, svc.Remove(ctx, "p1"), ErrNotFound)

	res, err := svc.List(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
}

func TestListSearchAndPaging(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.List(ctx, "first invoice", 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "VO-5GBP", res.Items[0].Code)

	res, err = svc.List(ctx, "", 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pagination.Page)
	assert.Equal(t, 2, res.Pagination.TotalPages)
}

func TestPreview(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, discount, err := svc.Preview(ctx, "vo-5gbp", Audience{Username: "alice"}, decimal.NewFromInt(39))
	require.NoError(t, err)
	assert.Equal(t, "5.00", discount.StringFixed(2))

	_, _, err = svc.Preview(ctx, "VO-5GBP", Audience{Username: "eve"}, decimal.NewFromInt(39))
	assert.ErrorIs(t, err, ErrNotInAudience)

	_, _, err = svc.Preview(ctx, "NOPE", Audience{}, decimal.NewFromInt(39))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandlers(t *testing.T) {
	svc, _ := newTestService(t)
	h := &Handler{Svc: svc}
	r := chi.NewRouter()
	r.Get("/promotions", h.List)
	r.Post("/promotions", h.Create)
	r.Post("/promotions/preview", h.Preview)
	r.Post("/promotions/{id}/toggle", h.Toggle)
	r.Delete("/promotions/{id}", h.Delete)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/promotions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"targeting":"New users only"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/promotions", strings.NewReader(`{"code":"VO-NEW","type":"PERCENT","value":"12"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/promotions", strings.NewReader(`{"code":"VO-NEW","type":"PERCENT","value":"12"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/promotions", strings.NewReader(`{"code":"VO-BAD","type":"BOGUS","value":"12"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/promotions/preview", strings.NewReader(`{"code":"VO-WELCOME10","amount":"39","newUser":false}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"eligible":false`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/promotions/p1/toggle", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":false`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/promotions/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
