package auth

import (
	"context"
	"errors"
)

var (
	ErrTokenEmpty   = errors.New("token is empty")
	ErrTokenInvalid = errors.New("token is invalid")
)

// AuthVerifier verifica un bearer token y devuelve claims o error.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
