package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/fedimint-http/internal/infrastructure/config"
)

// restRoute binds an HTTP method and path under /fedimint/v2 to a table method.
type restRoute struct {
	httpMethod string
	path       string
	method     string
}

// restRoutes lists every REST binding. The wallet routes are also mounted
// under /onchain.
var restRoutes = []restRoute{
	{http.MethodPost, "/admin/backup", "admin-backup"},
	{http.MethodGet, "/admin/discover-version", "admin-discover-version"},
	{http.MethodGet, "/admin/federation-ids", "admin-federation-ids"},
	{http.MethodGet, "/admin/info", "admin-info"},
	{http.MethodPost, "/admin/join", "admin-join"},
	{http.MethodPost, "/admin/restore", "admin-restore"},
	{http.MethodPost, "/admin/list-operations", "admin-list-operations"},
	{http.MethodPost, "/admin/module", "admin-module"},
	{http.MethodGet, "/admin/config", "admin-config"},

	{http.MethodPost, "/mint/reissue", "mint-reissue"},
	{http.MethodPost, "/mint/spend", "mint-spend"},
	{http.MethodPost, "/mint/validate", "mint-validate"},
	{http.MethodPost, "/mint/split", "mint-split"},
	{http.MethodPost, "/mint/combine", "mint-combine"},

	{http.MethodPost, "/ln/invoice", "ln-invoice"},
	{http.MethodPost, "/ln/await-invoice", "ln-await-invoice"},
	{http.MethodPost, "/ln/pay", "ln-pay"},
	{http.MethodPost, "/ln/await-pay", "ln-await-pay"},
	{http.MethodPost, "/ln/list-gateways", "ln-list-gateways"},
	{http.MethodPost, "/ln/switch-gateway", "ln-switch-gateway"},

	{http.MethodPost, "/wallet/deposit-address", "wallet-deposit-address"},
	{http.MethodPost, "/wallet/await-deposit", "wallet-await-deposit"},
	{http.MethodPost, "/wallet/withdraw", "wallet-withdraw"},
}

const walletPrefix = "/wallet/"

func (s *Server) restEnabled() bool {
	return s.mode == config.ModeDefault || s.mode == config.ModeFedimint
}

func (s *Server) wsEnabled() bool {
	return s.mode == config.ModeDefault || s.mode == config.ModeWS
}

func (s *Server) cashuEnabled() bool {
	return s.mode == config.ModeDefault || s.mode == config.ModeCashu
}

// buildRouter creates the HTTP router with the routes of the configured mode.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware())
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Unauthenticated
	r.Get("/", s.handleReadme)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Use(s.authMiddleware)
		r.Post("/auth/ws-ticket", s.handleWSTicket)
		r.Get("/status", s.handleStatus)
	})

	if s.restEnabled() || s.wsEnabled() {
		r.Route("/fedimint/v2", func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)

			if s.restEnabled() {
				r.Group(func(r chi.Router) {
					r.Use(s.authMiddleware)
					s.mountREST(r)
				})
			}

			// WebSocket routes accept the bearer header or a ticket.
			if s.wsEnabled() {
				r.Get("/ws", s.handleRPC)
				r.Get("/stream/{method}", s.handleStream)
			}
		})
	}

	if s.cashuEnabled() {
		r.Route("/cashu/v1", func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)
			r.Use(s.authMiddleware)
			s.mountCashu(r)
		})
	}

	return r
}

// mountREST binds every REST route and the journal lookups.
func (s *Server) mountREST(r chi.Router) {
	for _, rt := range restRoutes {
		h := s.methodHandler(rt.method)
		r.Method(rt.httpMethod, rt.path, h)
		if rest, ok := strings.CutPrefix(rt.path, walletPrefix); ok {
			r.Method(rt.httpMethod, "/onchain/"+rest, h)
		}
	}

	if s.journal != nil {
		r.Get("/admin/journal", s.handleListJournal)
		r.Get("/admin/journal/{operationId}", s.handleGetJournal)
	}
}
