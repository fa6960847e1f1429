package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brokeshield/brokeshield/internal/ctxkeys"
	"github.com/brokeshield/brokeshield/internal/model"
)

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	VerifyJWT(token string) (model.Identity, error)
}

// IdentityResolver records a verified identity before the request proceeds.
type IdentityResolver interface {
	Resolve(ctx context.Context, identity model.Identity) error
}

// Authenticate checks for a bearer token and adds the caller's identity to
// the context if valid. Requests without a valid token continue anonymously.
func Authenticate(verifier TokenVerifier, resolver IdentityResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := verifier.VerifyJWT(token)
			if err != nil {
				log.Debug("rejected bearer token", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			if err := resolver.Resolve(r.Context(), identity); err != nil {
				log.Error("failed to resolve identity", "error", err, "user_id", identity.UserID)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctxkeys.WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireIdentity rejects anonymous requests.
func RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ctxkeys.Identity(r.Context()).Valid() {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		next.ServeHTTP(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
