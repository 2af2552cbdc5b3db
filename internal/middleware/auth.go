package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	apierrors "reportexport/internal/errors"
)

// TokenVerifier checks a presented bearer token.
type TokenVerifier interface {
	Verify(token string) bool
}

// accessTokenParam carries the token where headers cannot, such as a
// browser WebSocket handshake.
const accessTokenParam = "access_token"

// BearerAuth rejects requests without a valid bearer token. A nil verifier
// disables the check.
func BearerAuth(verifier TokenVerifier, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) func(next http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "auth"))
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				logger.WarnContext(r.Context(), "missing bearer token",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="reportexport"`)
				errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
				return
			}

			if !verifier.Verify(token) {
				logger.WarnContext(r.Context(), "authentication failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="reportexport", error="invalid_token"`)
				errorHandler.HandleError(w, r, apierrors.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "bearer") {
			return "", false
		}
		token = strings.TrimSpace(token)
		return token, token != ""
	}
	if token := r.URL.Query().Get(accessTokenParam); token != "" {
		return token, true
	}
	return "", false
}
