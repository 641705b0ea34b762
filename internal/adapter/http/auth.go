package http

import (
	"context"
	"net/http"

	"github.com/videoflix/videoflix/internal/service"
)

// CookieName is the request cookie carrying the signed access token. The
// identity provider that sets it lives outside this service.
const CookieName = "access_token"

// TokenVerifier is the contract with the external auth collaborator: given
// a credential, return a valid principal or nothing.
type TokenVerifier interface {
	Verify(token string) (*service.Principal, error)
}

type principalKey struct{}

// RequireAuth rejects requests without a valid access-token cookie. The
// response carries no hint about why the credential was rejected.
func RequireAuth(verifier TokenVerifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		principal, err := verifier.Verify(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		next(w, r.WithContext(ctx))
	}
}

// PrincipalFrom returns the authenticated principal stored by RequireAuth.
func PrincipalFrom(ctx context.Context) (*service.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*service.Principal)
	return p, ok
}
