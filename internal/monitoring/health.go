package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ComponentStatus is the reported health of one engine component
type ComponentStatus struct {
	Healthy   bool      `json:"healthy"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthServer serves liveness and component health over HTTP
type HealthServer struct {
	mu         sync.RWMutex
	components map[string]ComponentStatus
	startedAt  time.Time
}

// NewHealthServer creates a health server
func NewHealthServer() *HealthServer {
	return &HealthServer{
		components: make(map[string]ComponentStatus),
		startedAt:  time.Now(),
	}
}

// SetStatus records the health of a named component
func (h *HealthServer) SetStatus(component string, healthy bool, detail string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[component] = ComponentStatus{
		Healthy:   healthy,
		Detail:    detail,
		UpdatedAt: time.Now(),
	}
}

// Healthy reports whether every registered component is healthy
func (h *HealthServer) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.components {
		if !c.Healthy {
			return false
		}
	}
	return true
}

func (h *HealthServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	response := struct {
		Status     string                     `json:"status"`
		UptimeSecs float64                    `json:"uptime_seconds"`
		Components map[string]ComponentStatus `json:"components"`
	}{
		Status:     "ok",
		UptimeSecs: time.Since(h.startedAt).Seconds(),
		Components: make(map[string]ComponentStatus, len(h.components)),
	}
	for name, c := range h.components {
		response.Components[name] = c
	}
	h.mu.RUnlock()

	code := http.StatusOK
	if !h.Healthy() {
		response.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}

// Serve starts the health HTTP server on the given port. Blocks until the
// server fails; run it in a goroutine.
func (h *HealthServer) Serve(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
