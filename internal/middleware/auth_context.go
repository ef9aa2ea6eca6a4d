package middleware

import (
	"context"
	"net/http"
	"strings"

	"medication-adherence/internal/ports/auth"
)

type ctxKey struct{}

// DebugUserHeader: en modo dev (sin verifier) identifica al usuario.
const DebugUserHeader = "X-Debug-User-ID"

// AuthContext resuelve claims y las deja en el context. Nunca corta el
// request: cada handler decide entre 401 y 403.
//   - verifier == nil: modo dev, se toma DebugUserHeader.
//   - verifier != nil: se exige Authorization: Bearer <token> válido.
func AuthContext(verifier auth.AuthVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := resolveClaims(r, verifier)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func resolveClaims(r *http.Request, verifier auth.AuthVerifier) (auth.Claims, bool) {
	if verifier == nil {
		uid := strings.TrimSpace(r.Header.Get(DebugUserHeader))
		return auth.Claims{UserID: uid}, uid != ""
	}

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return auth.Claims{}, false
	}
	claims, err := verifier.Verify(r.Context(), token)
	if err != nil || claims.UserID == "" {
		return auth.Claims{}, false
	}
	return claims, true
}

// WithClaims deja claims en ctx (middleware y tests).
func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(auth.Claims)
	return c, ok && c.UserID != ""
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
