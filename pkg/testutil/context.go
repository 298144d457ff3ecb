package testutil

import (
	"net/http"

	id "govnet/pkg/domain"
	"govnet/pkg/platform/middleware/admin"
	"govnet/pkg/requestcontext"
)

// WithCaller adds an authenticated caller address to the request context.
// This simulates what the caller middleware does for a valid bearer token.
func WithCaller(req *http.Request, caller id.Address) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// WithBearer sets the Authorization header to a bearer token.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// WithAdminToken sets the operator token header.
func WithAdminToken(req *http.Request, token string) *http.Request {
	req.Header.Set(admin.TokenHeader, token)
	return req
}
