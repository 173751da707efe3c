package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/fedimint-http/internal/rpc"
)

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

func (s *Server) sessionOptions() rpc.Options {
	opts := rpc.Options{
		Config: s.rpcCfg,
		Logger: s.logger,
	}
	if s.metrics != nil {
		opts.Observer = s.metrics
	}
	return opts
}

// handleRPC upgrades to a JSON-RPC session and serves it until the
// connection closes or the server shuts down.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeUpgrade(w, r) {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	session := rpc.NewSession(conn, s.table, s.sessionOptions())
	s.logger.Debug("rpc session opened", "session_id", session.ID(), "remote", clientIP(r))
	if err := session.Serve(s.baseCtx); err != nil {
		s.logger.Warn("rpc session ended with error", "session_id", session.ID(), "error", err)
		return
	}
	s.logger.Debug("rpc session closed", "session_id", session.ID())
}

// handleStream serves one subscription method as a raw event stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Unauthenticated callers get 401 whether or not the method exists.
	if !s.authorizeUpgrade(w, r) {
		return
	}
	name := chi.URLParam(r, "method")
	m, ok := s.table.Lookup(name)
	if !ok || !m.IsSubscription() {
		writeNotFound(w, "unknown subscription method: "+name)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	opts := s.sessionOptions()
	if s.metrics != nil {
		s.metrics.SubscriptionStarted(name)
		defer s.metrics.SubscriptionEnded(name)
	}
	if err := rpc.ServeStream(s.baseCtx, conn, m, opts); err != nil {
		s.logger.Debug("event stream ended", "method", name, "error", err)
	}
}
