// Package http combines OpenTelemetry request tracing with per-request
// profiling.
package http

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AlexKent3141/lurien/internal/adapters/apmhttp"
	"github.com/AlexKent3141/lurien/profiling"
)

// NewMiddleware wraps handler so that each request is traced under
// operation and profiled as its own thread by p.
func NewMiddleware(handler http.Handler, operation string, p *profiling.Profiler) http.Handler {
	return otelhttp.NewHandler(apmhttp.Middleware(p, handler), operation)
}

// NewClient returns a copy of base (or of a zero client) whose transport
// traces outgoing requests and marks them as scopes on the caller's thread.
func NewClient(base *http.Client) *http.Client {
	client := &http.Client{}
	if base != nil {
		*client = *base
	}
	client.Transport = otelhttp.NewTransport(apmhttp.NewTransport(client.Transport))
	return client
}
