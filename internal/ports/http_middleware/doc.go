// Package http_middleware provides the configurable HTTP middleware that
// profiles each request as its own thread. It honours the probe's enable
// switch so it can be left in place when profiling is turned off.
package http_middleware
