package observability

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthChecker manages liveness and readiness state.
// Readiness is the conjunction of named components: the service is ready
// once every required component has reported ready.
type HealthChecker struct {
	mu        sync.RWMutex
	required  []string
	ready     map[string]bool
	startTime time.Time
}

// NewHealthChecker creates a checker that waits for the given components.
func NewHealthChecker(required ...string) *HealthChecker {
	return &HealthChecker{
		required:  required,
		ready:     make(map[string]bool, len(required)),
		startTime: time.Now(),
	}
}

// SetReady records a component's readiness.
func (h *HealthChecker) SetReady(component string, ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready[component] = ready
}

// IsReady returns whether every required component is ready.
func (h *HealthChecker) IsReady() bool {
	return len(h.pending()) == 0
}

func (h *HealthChecker) pending() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var waiting []string
	for _, c := range h.required {
		if !h.ready[c] {
			waiting = append(waiting, c)
		}
	}
	sort.Strings(waiting)
	return waiting
}

// LivenessHandler always returns 200 while the process is running.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(h.startTime).String(),
	})
}

// ReadinessHandler returns 200 if the service is ready, 503 with the
// components still pending otherwise.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	waiting := h.pending()
	if len(waiting) == 0 {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ready",
		})
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "not_ready",
		"pending": waiting,
	})
}
