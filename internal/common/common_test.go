package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	start, end, meta := Paginate(0, 3, 10)
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)
	assert.Equal(t, Pagination{Page: 1, PerPage: 10, TotalItems: 0, TotalPages: 1}, meta)

	start, end, meta = Paginate(25, 3, 10)
	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)
	assert.Equal(t, 3, meta.TotalPages)

	_, _, meta = Paginate(25, 99, 10)
	assert.Equal(t, 3, meta.Page)

	_, _, meta = Paginate(5, -1, 0)
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, DefaultPageSize, meta.PerPage)
}

func TestParsePagination(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=2&limit=5", nil)
	page, per := ParsePagination(r, 10)
	assert.Equal(t, 2, page)
	assert.Equal(t, 5, per)

	r = httptest.NewRequest(http.MethodGet, "/?page=abc", nil)
	page, per = ParsePagination(r, 10)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, per)
}

func TestQueryIntAndClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?days=14&limit=-3&page=x", nil)
	assert.Equal(t, 14, QueryInt(r, "days", 7))
	assert.Equal(t, 20, QueryInt(r, "limit", 20))
	assert.Equal(t, 1, QueryInt(r, "page", 1))
	assert.Equal(t, 5, QueryInt(r, "missing", 5))

	r.RemoteAddr = "203.0.113.4:8080"
	assert.Equal(t, "203.0.113.4", ClientIP(r))
	r.RemoteAddr = "203.0.113.5"
	assert.Equal(t, "203.0.113.5", ClientIP(r))
	assert.Empty(t, ClientIP(nil))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NewAppError("NOT_FOUND", "missing", http.StatusNotFound, errors.New("x")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)

	wrapped := fmt.Errorf("load: %w", NewAppError("CONFLICT", "taken", http.StatusConflict, nil))
	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "taken", appErr.Error())
	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	calls := 0
	handler := Idempotency{Client: client, Prefix: "test:", TTL: time.Minute}.Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusCreated)
		}))

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithUserID(req.Context(), "u1"))
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send("abc"))
	assert.Equal(t, http.StatusConflict, send("abc"))
	assert.Equal(t, http.StatusCreated, send(""))
	assert.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	status := http.StatusUnprocessableEntity
	calls := 0
	handler := Idempotency{Client: client, Prefix: "test:", TTL: time.Minute}.Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			JSONError(w, status, "NOT_PAYABLE", "nothing selected", nil)
		}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithUserID(req.Context(), "u1"))
		req.Header.Set("Idempotency-Key", "pay-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnprocessableEntity, send())
	assert.Empty(t, mr.Keys())

	status = http.StatusOK
	assert.Equal(t, http.StatusOK, send())
	assert.Len(t, mr.Keys(), 1)
	assert.Equal(t, http.StatusConflict, send())
	assert.Equal(t, 2, calls)
}

func TestAuthContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithRole(WithUserID(r.Context(), "u1"), "admin")
	id, ok := UserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
	role, ok := Role(ctx)
	assert.True(t, ok)
	assert.Equal(t, "admin", role)
	_, ok = Role(r.Context())
	assert.False(t, ok)
}
