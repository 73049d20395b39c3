package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports the state of the watch loop
type HealthChecker struct {
	mu        sync.RWMutex
	interval  time.Duration
	lastCycle time.Time
	cycles    int
	failed    []string
	now       func() time.Time
}

// HealthStatus is the JSON body of the health endpoint
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LastCycle time.Time `json:"last_cycle,omitempty"`
	Cycles    int       `json:"cycles"`
	Uptime    string    `json:"uptime"`
	Failed    []string  `json:"failed_partitions,omitempty"`
}

// NewHealthChecker creates a checker for a loop that runs every interval
func NewHealthChecker(interval time.Duration) *HealthChecker {
	return &HealthChecker{interval: interval, now: time.Now}
}

// RecordCycle stores the outcome of one watch cycle
func (h *HealthChecker) RecordCycle(failedPartitions []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = h.now()
	h.cycles++
	h.failed = append([]string(nil), failedPartitions...)
}

// Status computes the current health. A loop that missed two intervals is stale.
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := "healthy"
	switch {
	case h.cycles == 0:
		status = "starting"
	case h.interval > 0 && now.Sub(h.lastCycle) > 2*h.interval:
		status = "stale"
	case len(h.failed) > 0:
		status = "degraded"
	}
	return HealthStatus{
		Status:    status,
		Timestamp: now,
		LastCycle: h.lastCycle,
		Cycles:    h.cycles,
		Uptime:    time.Since(startTime).String(),
		Failed:    h.failed,
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "stale" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}
