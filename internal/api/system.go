package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// healthCheckTimeout bounds each component check on /health.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Federations int               `json:"federations"`
	Components  map[string]string `json:"components,omitempty"`
}

// handleHealth reports "ok", or "degraded" with 503 when a component check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Version:     s.version,
		Federations: s.registry.Len(),
	}

	if len(s.health) > 0 {
		resp.Components = make(map[string]string, len(s.health))
		for name, checker := range s.health {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := checker.HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleReadme describes the mounted surfaces in plain text.
func (s *Server) handleReadme(w http.ResponseWriter, _ *http.Request) {
	base := strings.TrimRight(s.domain, "/")

	var b strings.Builder
	fmt.Fprintf(&b, "fedimint-http %s\n\n", s.version)
	fmt.Fprintf(&b, "Mode: %s\n\n", s.mode)
	if s.restEnabled() {
		fmt.Fprintf(&b, "Fedimint REST API: %s/fedimint/v2\n", base)
		for _, rt := range restRoutes {
			fmt.Fprintf(&b, "  %-4s %s/fedimint/v2%s\n", rt.httpMethod, base, rt.path)
		}
		b.WriteString("\n")
	}
	if s.wsEnabled() {
		fmt.Fprintf(&b, "JSON-RPC over WebSocket: %s/fedimint/v2/ws\n", base)
		fmt.Fprintf(&b, "Event streams: %s/fedimint/v2/stream/{method}\n\n", base)
	}
	if s.cashuEnabled() {
		fmt.Fprintf(&b, "Cashu API: %s/cashu/v1 (not implemented)\n\n", base)
	}
	b.WriteString("Authenticate with \"Authorization: Bearer <password>\".\n")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write([]byte(b.String()))
}
