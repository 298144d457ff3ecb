package admin

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(expected, sent string) (*httptest.ResponseRecorder, string) {
		var logs bytes.Buffer
		h := RequireAdminToken(expected, slog.New(slog.NewTextHandler(&logs, nil)))(next)
		req := httptest.NewRequest(http.MethodGet, "/governance/audit", nil)
		if sent != "" {
			req.Header.Set(TokenHeader, sent)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec, logs.String()
	}

	t.Run("matching token passes", func(t *testing.T) {
		rec, logs := serve("s3cret", "s3cret")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, logs)
	})

	t.Run("missing token", func(t *testing.T) {
		rec, logs := serve("s3cret", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, rejectedBody, rec.Body.String())
		assert.Contains(t, logs, "operator token rejected")
		assert.Contains(t, logs, "missing token")
		assert.Contains(t, logs, "path=/governance/audit")
	})

	t.Run("wrong token", func(t *testing.T) {
		rec, logs := serve("s3cret", "guess")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, logs, "token mismatch")
		assert.NotContains(t, logs, "guess")
	})

	t.Run("unconfigured token disables the surface", func(t *testing.T) {
		rec, logs := serve("", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, logs, "operator surface disabled")
	})
}
