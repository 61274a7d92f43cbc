package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/virtual-office/internal/common"
)

var testParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func newTestService(t *testing.T) *Service {
	t.Helper()
	clientHash, err := argon2id.CreateHash("client-pass", testParams)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	adminHash, err := argon2id.CreateHash("admin-pass", testParams)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	svc, err := NewService(Config{
		Secret:         "super-secret-key",
		AccessTokenTTL: time.Minute,
		Accounts: []Account{
			{Username: "Client", Name: "Demo Client", Role: RoleClient, PasswordHash: clientHash},
			{Username: "admin", Role: RoleAdmin, PasswordHash: adminHash},
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixed := time.Now()
	svc.WithNow(func() time.Time { return fixed })
	return svc
}

func TestNewServiceRequiresSecretAndAccounts(t *testing.T) {
	if _, err := NewService(Config{Accounts: []Account{{Username: "a", Role: RoleClient, PasswordHash: "x"}}}); err == nil {
		t.Fatal("expected missing secret error")
	}
	if _, err := NewService(Config{Secret: "s"}); err == nil {
		t.Fatal("expected missing accounts error")
	}
	if _, err := NewService(Config{Secret: "s", Accounts: []Account{{Username: "a", Role: "root", PasswordHash: "x"}}}); err == nil {
		t.Fatal("expected unknown role error")
	}
}

func TestLoginIssuesRoleToken(t *testing.T) {
	svc := newTestService(t)
	result, err := svc.Login(context.Background(), " CLIENT ", "client-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.User.Username != "client" || result.User.Role != RoleClient || result.User.Name != "Demo Client" {
		t.Fatalf("unexpected user %+v", result.User)
	}
	claims, err := svc.ParseAccessToken(result.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Subject != "client" || claims.Role != RoleClient {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	for _, tc := range []struct{ user, pass string }{
		{"client", "wrong"},
		{"nobody", "client-pass"},
		{"client", ""},
	} {
		_, err := svc.Login(context.Background(), tc.user, tc.pass)
		if _, ok := common.AsAppError(err); !ok {
			t.Fatalf("%s/%s: expected app error, got %v", tc.user, tc.pass, err)
		}
	}
}

func TestParseAccessTokenRejectsAlgorithmMismatch(t *testing.T) {
	svc := newTestService(t)
	now := svc.now()
	built, err := jwt.NewBuilder().
		Subject("client").
		Issuer(svc.issuer).
		Audience([]string{svc.audience}).
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Claim(roleClaim, RoleAdmin).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(built, jwt.WithKey(jwa.HS384, svc.secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.ParseAccessToken(string(signed)); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
}

func TestParseAccessTokenRejectsExpiredAndForeignTokens(t *testing.T) {
	svc := newTestService(t)
	token, _, err := svc.signAccessToken("client", RoleClient)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	later := svc.now().Add(2 * time.Minute)
	svc.WithNow(func() time.Time { return later })
	if _, err := svc.ParseAccessToken(token); err == nil {
		t.Fatal("expected expiry error")
	}

	other := newTestService(t)
	other.secret = []byte("different")
	foreign, _, err := other.signAccessToken("client", RoleAdmin)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newTestService(t).ParseAccessToken(foreign); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestTokenValidatorRequiresRole(t *testing.T) {
	now := time.Now()
	token, _ := jwt.NewBuilder().
		Issuer("issuer").
		Audience([]string{"aud"}).
		Subject("sub").
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	v := TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256}
	if err := v.Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected missing role error")
	}
	if err := token.Set(roleClaim, RoleClient); err != nil {
		t.Fatalf("set claim: %v", err)
	}
	if err := v.Validate(token, jwa.HS256, now); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := v.Validate(token, jwa.RS256, now); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
	other := TokenValidator{Issuer: "other", Audience: "aud", Algorithm: jwa.HS256}
	if err := other.Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestMiddlewareAndRoleGate(t *testing.T) {
	svc := newTestService(t)
	mw := Middleware{Service: svc, AccessCookie: "vo_access"}
	admin := mw.RequireAuth(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := common.UserID(r.Context())
		_, _ = w.Write([]byte(user))
	})))

	clientLogin, _ := svc.Login(context.Background(), "client", "client-pass")
	adminLogin, _ := svc.Login(context.Background(), "admin", "admin-pass")

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"client role", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+clientLogin.AccessToken) }, http.StatusForbidden},
		{"admin header", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+adminLogin.AccessToken) }, http.StatusOK},
		{"admin cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "vo_access", Value: adminLogin.AccessToken}) }, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			admin.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
			if tc.status == http.StatusOK && rec.Body.String() != "admin" {
				t.Fatalf("unexpected body %q", rec.Body.String())
			}
		})
	}
}

func TestHandlers(t *testing.T) {
	svc := newTestService(t)
	h := &Handler{Service: svc, AccessCookieName: "vo_access"}

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"client","password":"bad"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":""}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"client","password":"client-pass"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data LoginResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.AccessToken == "" || body.Data.User.Role != RoleClient {
		t.Fatalf("unexpected login payload %+v", body.Data)
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Fatal("expected access cookie")
	}

	me := Middleware{Service: svc}.RequireAuth(http.HandlerFunc(h.Me))
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Data.AccessToken)
	rec = httptest.NewRecorder()
	me.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"username":"client"`) {
		t.Fatalf("unexpected me response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := argon2id.ComparePasswordAndHash("s3cret", hash)
	if err != nil || !ok {
		t.Fatalf("expected hash to match: %v", err)
	}
}
