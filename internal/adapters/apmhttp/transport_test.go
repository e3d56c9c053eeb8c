package apmhttp

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexKent3141/lurien/profiling"
)

func TestTransport_RoundTrip(t *testing.T) {
	sink := &recordingSink{}
	p := newStoppedProfiler(sink)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := &http.Client{Transport: NewTransport(nil)}

	th := p.NewThread("caller")
	req, err := http.NewRequestWithContext(profiling.WithThread(t.Context(), th), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	th.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	outputs := sink.all()
	require.Len(t, outputs, 1)
	require.Len(t, outputs[0].Scopes, 1)
	assert.Equal(t, "http.client "+u.Host, outputs[0].Scopes[0].Name)
}

func TestTransport_WithoutThread(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := &http.Client{Transport: NewTransport(nil)}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
