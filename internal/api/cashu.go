package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fedimint-http/internal/handler"
)

// mountCashu binds the Cashu NUT routes. None are implemented yet; each
// answers 501 with the route it was asked for.
func (s *Server) mountCashu(r chi.Router) {
	r.Get("/keys", cashuNotImplemented("keys"))
	r.Get("/keys/{keyset_id}", cashuNotImplemented("keys by keyset"))
	r.Get("/keysets", cashuNotImplemented("keysets"))
	r.Post("/swap", cashuNotImplemented("swap"))

	r.Get("/mint/quote/{method}", cashuNotImplemented("mint quote"))
	r.Post("/mint/quote/{method}", cashuNotImplemented("mint quote"))
	r.Get("/mint/quote/{method}/{quote_id}", cashuNotImplemented("mint quote status"))
	r.Post("/mint/{method}", cashuNotImplemented("mint"))

	r.Get("/melt/quote/{method}", cashuNotImplemented("melt quote"))
	r.Post("/melt/quote/{method}", cashuNotImplemented("melt quote"))
	r.Get("/melt/quote/{method}/{quote_id}", cashuNotImplemented("melt quote status"))
	r.Post("/melt/{method}", cashuNotImplemented("melt"))

	r.Get("/info", cashuNotImplemented("info"))
	r.Post("/check", cashuNotImplemented("check"))
}

func cashuNotImplemented(what string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, handler.NotImplemented("cashu "+what))
	}
}
