package api

import (
	"net/http"
	"time"
)

// WSTicketResponse is returned by POST /auth/ws-ticket.
type WSTicketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresAt string `json:"expires_at"`
}

// handleWSTicket issues a single-use ticket for a WebSocket upgrade.
// The route sits behind authMiddleware.
func (s *Server) handleWSTicket(w http.ResponseWriter, _ *http.Request) {
	ticket, expires, err := s.tickets.Issue()
	if err != nil {
		s.logger.Error("issuing websocket ticket failed", "error", err)
		writeInternalError(w, "failed to issue ticket")
		return
	}
	writeJSON(w, http.StatusOK, WSTicketResponse{
		Ticket:    ticket,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
	})
}

// authorizeUpgrade accepts the bearer credential or a ?ticket= query
// parameter. It writes the 401 itself and reports whether to continue.
func (s *Server) authorizeUpgrade(w http.ResponseWriter, r *http.Request) bool {
	if token, ok := bearerToken(r); ok && s.credential.Verify(token) {
		return true
	}

	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "bearer token or ticket query parameter is required")
		return false
	}
	if err := s.tickets.Redeem(ticket); err != nil {
		s.logger.Debug("websocket ticket rejected", "error", err)
		writeUnauthorized(w, "invalid or expired ticket")
		return false
	}
	return true
}
