// Package admin gates the operator surface of a governance router: the audit
// trail and other read-outs that expose message history across domains.
// Governance operations themselves are authorised by caller identity, not by
// this token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	request "govnet/pkg/platform/middleware/request"
)

// TokenHeader carries the operator token.
const TokenHeader = "X-Admin-Token"

const rejectedBody = `{"error":"unauthorized","error_description":"operator token required"}`

// RequireAdminToken admits requests bearing the configured operator token.
// An empty expected token rejects everything, so an unconfigured router
// never serves its audit trail.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(TokenHeader)
			if reason := rejectToken(expectedToken, token); reason != "" {
				ctx := r.Context()
				logger.WarnContext(ctx, "operator token rejected",
					"reason", reason,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(rejectedBody))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectToken(expected, got string) string {
	switch {
	case expected == "":
		return "operator surface disabled"
	case got == "":
		return "missing token"
	case subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1:
		return "token mismatch"
	default:
		return ""
	}
}
