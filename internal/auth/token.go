package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/virtual-office/internal/common"
)

const roleClaim = "role"

// Claims are the identity facts read from an access token.
type Claims struct {
	Subject string
	Role    string
}

// ParseAccessToken validates an access token and returns its claims.
func (s *Service) ParseAccessToken(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	role, _ := parsed.Get(roleClaim)
	roleStr, _ := role.(string)
	return Claims{Subject: parsed.Subject(), Role: roleStr}, nil
}

func (s *Service) signAccessToken(subject, role string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(roleClaim, role).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: expected exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}

// TokenValidator checks issuer, audience, lifetime and algorithm.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate checks tok against the validator's expectations at now. The role
// claim must be present.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(roleClaim),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	return jwt.Validate(tok, options...)
}
