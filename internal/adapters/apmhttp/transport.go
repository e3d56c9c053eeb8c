package apmhttp

import (
	"net/http"

	"github.com/AlexKent3141/lurien/profiling"
)

// Transport is an http.RoundTripper that marks each round trip as a scope
// on the profiled thread found in the request context.
type Transport struct {
	// Base is the underlying RoundTripper to execute the request.
	// If nil, http.DefaultTransport is used.
	Base http.RoundTripper
}

// RoundTrip executes a single HTTP transaction inside an
// "http.client <host>" scope.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	defer profiling.Enter(req.Context(), "http.client "+req.URL.Host).Exit()
	return base.RoundTrip(req)
}

func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}
