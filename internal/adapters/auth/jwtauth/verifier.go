// Package jwtauth verifica bearer tokens HS256 firmados con un secreto compartido.
package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"medication-adherence/internal/ports/auth"
)

var ErrNotConfigured = errors.New("jwt verifier not configured")

type Options struct {
	Secret   string
	Issuer   string
	Audience string

	// Tolerancia de reloj entre emisor y API.
	Leeway time.Duration
}

// tokenClaims: claims registrados más email/name opcionales.
type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(opts Options) (*Verifier, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, ErrNotConfigured
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	if opts.Leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(opts.Leeway))
	}

	return &Verifier{secret: []byte(opts.Secret), parser: jwt.NewParser(parserOpts...)}, nil
}

func (v *Verifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	if v == nil {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, auth.ErrTokenEmpty
	}

	tc := &tokenClaims{}
	_, err := v.parser.ParseWithClaims(token, tc, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", auth.ErrTokenInvalid, err)
	}

	sub := strings.TrimSpace(tc.Subject)
	if sub == "" {
		return auth.Claims{}, fmt.Errorf("%w: missing subject", auth.ErrTokenInvalid)
	}

	c := auth.Claims{UserID: sub, Email: tc.Email, Name: tc.Name}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}

// Sign emite un token HS256 (CLI y tests).
func Sign(opts Options, userID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return "", ErrNotConfigured
	}
	now := time.Now()
	rc := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    opts.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if opts.Audience != "" {
		rc.Audience = jwt.ClaimStrings{opts.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{RegisteredClaims: rc}).SignedString([]byte(opts.Secret))
}
