package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/registry"
)

// SystemStatus is the body of GET /status.
type SystemStatus struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	Mode          string          `json:"mode"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	Registry      RegistryMetrics `json:"registry"`
	Methods       []string        `json:"methods"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// RegistryMetrics describes the client registry.
type RegistryMetrics struct {
	Federations []federation.ID `json:"federation_ids"`
	Policy      registry.Policy `json:"default_policy"`
	Primary     federation.ID   `json:"primary,omitempty"`
}

const bytesPerMB = 1024 * 1024

// handleStatus returns runtime and registry details. Prometheus metrics
// are served separately on /metrics.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	primary, _ := s.registry.Primary()

	writeJSON(w, http.StatusOK, SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		Mode:          s.mode,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(memStats.TotalAlloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
		Registry: RegistryMetrics{
			Federations: s.registry.IDs(),
			Policy:      s.registry.Policy(),
			Primary:     primary,
		},
		Methods: s.table.Names(),
	})
}
