package transport

import (
	"net/http"
)

// HeaderTransport sets a fixed group of headers on every request it carries. Headers already present on a request are
// left untouched so that per-call values win.
type HeaderTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func WithHeaders(base http.RoundTripper, headers http.Header) *HeaderTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &HeaderTransport{base: base, headers: headers.Clone()}
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	for key, values := range t.headers {
		if req.Header.Get(key) != "" {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return t.base.RoundTrip(req)
}
