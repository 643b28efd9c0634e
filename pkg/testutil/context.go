package testutil

import (
	"net/http"

	"seeddid/pkg/requestcontext"
)

// WithAddress signs req in as address, as RequireAuth would.
func WithAddress(req *http.Request, address string) *http.Request {
	return req.WithContext(requestcontext.WithAddress(req.Context(), address))
}
