package transport

import (
	"context"
	"io"
	"net/http"
)

// Response is the outcome of one dispatched request.
type Response struct {
	Status  int
	Body    []byte
	Headers http.Header
}

// Location returns the redirect target of the response, or an empty string.
func (r *Response) Location() string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Location")
}

// Doer dispatches a single HTTP request and returns its status, body and
// headers. Implementations must maintain cookie continuity across calls made
// through the same Doer: the SSO handshake is a bounded sequence of requests
// whose server-side state is carried entirely in cookies.
type Doer interface {
	Do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*Response, error)
}
