package http

import (
	"context"
	"net/http"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	context_ "github.com/mkrupp/homecase-accounts/internal/infra/context"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
)

// TokenVerifier validates a session token and returns the identity it carries.
type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (domain.AuthToken, error)
}

// AuthorizingMiddleware creates middleware that validates the session cookie.
// Requests without a valid token in the named cookie are rejected with 401.
// On successful validation, the identity is added to the request context.
func AuthorizingMiddleware(
	next http.Handler,
	verifier TokenVerifier,
	cookieName string,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(cookieName)
		if err != nil || cookie.Value == "" {
			log.DebugContext(r.Context(), "no token provided")
			WriteError(w, domain.ErrNoAuthToken)

			return
		}

		identity, err := verifier.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			log.WarnContext(r.Context(), "invalid token", "error", err)
			WriteError(w, err)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithIdentity(r.Context(), identity)))
	})
}
