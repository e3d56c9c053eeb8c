// Package apmhttp adapts net/http to the profiler. The server middleware
// runs every request as its own profiled thread and carries it on the
// request context; the client transport marks outgoing round trips as
// scopes on that thread.
package apmhttp
