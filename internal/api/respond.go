package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/atmx/price-feed/internal/model"
)

// Metadata accompanies every price listing.
type Metadata struct {
	GeneratedAt string `json:"generated_at"`
	Count       int    `json:"count"`
}

func newMetadata(now time.Time, count int) Metadata {
	return Metadata{GeneratedAt: model.FormatTimestamp(now), Count: count}
}

// errorResponse is the JSON body of every error.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response titled with the status text.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
