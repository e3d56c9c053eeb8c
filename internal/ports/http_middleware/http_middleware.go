package http_middleware

import (
	"net/http"

	"github.com/AlexKent3141/lurien/internal/adapters/apmhttp"
	"github.com/AlexKent3141/lurien/pkg/config"
	"github.com/AlexKent3141/lurien/profiling"
)

// ProfilingMiddleware returns a middleware that profiles every request with
// p. It returns a function that takes an http.Handler and returns an
// http.Handler, suitable for use with frameworks like chi.
func ProfilingMiddleware(cfg config.Config, p *profiling.Profiler) func(http.Handler) http.Handler {
	if !cfg.Enabled || p == nil {
		// If disabled, return a no-op middleware.
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return apmhttp.Middleware(p, next)
	}
}
