package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/handler"
	"github.com/nerrad567/fedimint-http/internal/journal"
)

// methodHandler serves one table method over REST: the body is the params
// and the result is the response body.
func (s *Server) methodHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := s.table.Lookup(name)
		if !ok {
			writeError(w, handler.NotImplemented(name))
			return
		}

		var params []byte
		if r.Method != http.MethodGet && r.Body != nil {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, handler.BadRequest(fmt.Errorf("reading body: %w", err)))
				return
			}
			params = body
		}

		result, err := m.Call(r.Context(), params)
		if err != nil {
			s.logFailure(r, name, err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// logFailure logs server-side failures at Error and client errors at Debug.
func (s *Server) logFailure(r *http.Request, method string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return
	}
	kind := handler.KindOf(err)
	args := []any{
		"method", method,
		"kind", kind.String(),
		"error", err,
		"request_id", requestIDFrom(r.Context()),
	}
	if kind.Status() >= http.StatusInternalServerError && kind != handler.KindNotImplemented {
		s.logger.Error("request failed", args...)
		return
	}
	s.logger.Debug("request failed", args...)
}

// handleListJournal lists journaled operations, newest first.
//
// Query parameters:
//   - federationId: only this federation
//   - limit: max results (default 50, max 500)
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	limit := journal.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, handler.BadRequest(errors.New("limit must be a positive integer")))
			return
		}
		limit = min(n, maxJournalLimit)
	}

	entries, err := s.journal.List(r.Context(), federation.ID(r.URL.Query().Get("federationId")), limit)
	if err != nil {
		s.logger.Error("listing journal failed", "error", err)
		writeInternalError(w, "failed to list operations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": entries})
}

const maxJournalLimit = 500

// handleGetJournal returns one journaled operation.
func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	id := federation.OperationID(chi.URLParam(r, "operationId"))
	entry, err := s.journal.Get(r.Context(), id)
	if errors.Is(err, journal.ErrNotFound) {
		writeNotFound(w, "operation not found")
		return
	}
	if err != nil {
		s.logger.Error("reading journal failed", "operation_id", id, "error", err)
		writeInternalError(w, "failed to read operation")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
