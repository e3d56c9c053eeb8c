package apmhttp

import (
	"net/http"
	"regexp"

	"github.com/AlexKent3141/lurien/profiling"
)

// Numeric path segments are collapsed so that /users/1 and /users/2 share
// one scope.
var pathNumberRegex = regexp.MustCompile(`/\d+(/|$)`)

// normalizePath replaces numeric path segments with a placeholder.
// e.g., "/users/42/orders" becomes "/users/?/orders".
func normalizePath(path string) string {
	for pathNumberRegex.MatchString(path) {
		path = pathNumberRegex.ReplaceAllString(path, "/?$1")
	}
	return path
}

// ScopeName returns the scope a request is served in.
func ScopeName(r *http.Request) string {
	return r.Method + " " + normalizePath(r.URL.Path)
}

// Middleware profiles each request as a separate thread. The handler runs
// inside a scope named by ScopeName and the thread's output is delivered
// when the handler returns.
func Middleware(p *profiling.Profiler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		th := p.NewThread(r.Method + " " + r.URL.Path)
		defer th.Close()
		defer th.Enter(ScopeName(r)).Exit()

		next.ServeHTTP(w, r.WithContext(profiling.WithThread(r.Context(), th)))
	})
}
