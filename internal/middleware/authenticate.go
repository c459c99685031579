package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vidfriends/friends/internal/auth"
	"github.com/vidfriends/friends/internal/logging"
)

// TokenVerifier validates a bearer token and returns the account it belongs to.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Authenticate rejects requests without a valid bearer token and stores the
// acting account id on the request context for downstream handlers.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}

			accountID, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("bearer token rejected", "error", err)
				unauthorized(w, "invalid bearer token")
				return
			}

			ctx = auth.WithAccountID(ctx, accountID)
			ctx = logging.With(ctx, slog.String("account_id", accountID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="friends"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
