// Package http_reporter provides an HTTP handler exposing the probe's store
// in JSON format: the most recently finished thread trees, detected
// hotspots and the sampler's statistics.
//
// The package implements the standard http.Handler interface and can be
// mounted on any HTTP router or used with the standard library's http package.
package http_reporter
