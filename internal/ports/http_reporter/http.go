package http_reporter

import (
	"encoding/json"
	"net/http"

	"github.com/AlexKent3141/lurien/domain"
)

// NewHandler creates an HTTP handler that serves a snapshot of the given
// store as JSON.
func NewHandler(store domain.StoreReader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snapshot := store.GetSnapshot()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			http.Error(w, "Failed to encode snapshot to JSON", http.StatusInternalServerError)
		}
	})
}
