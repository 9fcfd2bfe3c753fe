package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const healthTimeout = 3 * time.Second

// HealthResponse is the JSON body of the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker reports whether the index behind the server is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler returns the /health handler: 200 when the index answers
// within three seconds, 503 otherwise.
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		response := HealthResponse{
			Status:    "healthy",
			Index:     "connected",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		code := http.StatusOK

		if err := checker.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Index = "disconnected"
			response.Error = err.Error()
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(response)
	}
}
