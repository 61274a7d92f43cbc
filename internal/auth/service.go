package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"

	"github.com/noah-isme/virtual-office/internal/common"
	"github.com/noah-isme/virtual-office/internal/obs"
)

const defaultAccessTTL = time.Hour

// Roles carried in the access token.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Account is a demo login configured through the environment.
type Account struct {
	Username     string
	Name         string
	Role         string
	PasswordHash string
}

// User is the public view of an authenticated account.
type User struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// LoginResult carries the issued access token.
type LoginResult struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"accessToken"`
	AccessExpiry time.Time `json:"accessTokenExpiresAt"`
}

// Config configures the auth service.
type Config struct {
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
	Accounts       []Account
}

// Service checks demo credentials and issues HS256 access tokens.
type Service struct {
	accounts  map[string]Account
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	issuer    string
	audience  string
	clockSkew time.Duration
}

var errInvalidCredentials = common.NewAppError("INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized, nil)

// NewService validates the configuration and builds a Service.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accounts := make(map[string]Account, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		username := normalizeUsername(a.Username)
		if username == "" || a.PasswordHash == "" {
			continue
		}
		if a.Role != RoleClient && a.Role != RoleAdmin {
			return nil, errors.New("auth: unknown role " + a.Role)
		}
		a.Username = username
		if a.Name == "" {
			a.Name = a.Username
		}
		accounts[username] = a
	}
	if len(accounts) == 0 {
		return nil, errors.New("auth: at least one account is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "virtual-office"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "virtual-office-dashboard"
	}
	clockSkew := max(cfg.ClockSkew, 0)

	return &Service{
		accounts:  accounts,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
		signer:    jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Login verifies the credentials and issues an access token.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if err := ctx.Err(); err != nil {
		return LoginResult{}, err
	}
	account, ok := s.accounts[normalizeUsername(username)]
	if !ok || password == "" {
		recordLogin("failure")
		return LoginResult{}, errInvalidCredentials
	}
	match, err := argon2id.ComparePasswordAndHash(password, account.PasswordHash)
	if err != nil || !match {
		recordLogin("failure")
		return LoginResult{}, errInvalidCredentials
	}
	token, expiresAt, err := s.signAccessToken(account.Username, account.Role)
	if err != nil {
		return LoginResult{}, err
	}
	recordLogin("success")
	return LoginResult{User: account.user(), AccessToken: token, AccessExpiry: expiresAt}, nil
}

// Lookup returns the public view of an account.
func (s *Service) Lookup(username string) (User, bool) {
	a, ok := s.accounts[normalizeUsername(username)]
	if !ok {
		return User{}, false
	}
	return a.user(), true
}

// HashPassword produces an argon2id hash suitable for the account config.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2id.DefaultParams)
}

func (a Account) user() User {
	return User{Username: a.Username, Name: a.Name, Role: a.Role}
}

func normalizeUsername(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func recordLogin(result string) {
	if obs.LoginAttemptsTotal != nil {
		obs.LoginAttemptsTotal.WithLabelValues(result).Inc()
	}
}
