package handler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/operation"
	"github.com/nerrad567/fedimint-http/internal/registry"
)

// Logger defines the logging interface used by Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// InvoiceResolver turns an LNURL pay endpoint into a BOLT11 invoice.
type InvoiceResolver interface {
	Invoice(ctx context.Context, target *url.URL, amountMsat uint64, comment string) (string, error)
}

// Emit delivers one streamed value to a subscriber. An error stops the stream.
type Emit func(v any) error

// Deps holds the collaborators of a Service.
type Deps struct {
	Backend  federation.Backend
	Manager  *registry.Manager
	LNURL    InvoiceResolver
	Recorder operation.Recorder
	Logger   Logger
}

// Service implements every gateway operation.
type Service struct {
	backend  federation.Backend
	manager  *registry.Manager
	registry *registry.Registry
	lnurl    InvoiceResolver
	recorder operation.Recorder
	logger   Logger
}

// New creates a Service.
func New(deps Deps) (*Service, error) {
	if deps.Backend == nil {
		return nil, errors.New("handler: backend is required")
	}
	if deps.Manager == nil {
		return nil, errors.New("handler: registry manager is required")
	}
	s := &Service{
		backend:  deps.Backend,
		manager:  deps.Manager,
		registry: deps.Manager.Registry(),
		lnurl:    deps.LNURL,
		recorder: deps.Recorder,
		logger:   deps.Logger,
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	return s, nil
}

// Registry returns the client registry the service resolves against.
func (s *Service) Registry() *registry.Registry { return s.registry }

// client resolves an optional federation id; empty means the default client.
func (s *Service) client(federationID string) (federation.Client, error) {
	sel := registry.Default()
	if federationID = strings.TrimSpace(federationID); federationID != "" {
		id, err := federation.ParseID(federationID)
		if err != nil {
			return nil, BadRequest(err)
		}
		sel = registry.ByID(id)
	}
	c, err := s.registry.Resolve(sel)
	if err != nil {
		s.logger.Debug("client resolution failed", "federation_id", federationID, "error", err)
		return nil, BadRequest(fmt.Errorf("No client found for federation id: %w", err)) //nolint:staticcheck // Message matches the public API
	}
	return c, nil
}

// clientForNotes resolves the client that issued notes.
func (s *Service) clientForNotes(notes federation.Notes) (federation.Client, error) {
	c, err := s.registry.Resolve(registry.ByPrefix(notes.Federation))
	if err != nil {
		s.logger.Debug("client resolution by prefix failed", "prefix", notes.Federation, "error", err)
		return nil, BadRequest(fmt.Errorf("No client found for federation id prefix: %w", err)) //nolint:staticcheck // Message matches the public API
	}
	return c, nil
}

func (s *Service) decodeNotes(raw string) (federation.Notes, error) {
	if strings.TrimSpace(raw) == "" {
		return federation.Notes{}, badRequestf("notes are required")
	}
	notes, err := s.backend.DecodeNotes(raw)
	if err != nil {
		return federation.Notes{}, BadRequest(err)
	}
	return notes, nil
}

func requireOperation(id federation.OperationID) error {
	if strings.TrimSpace(id.String()) == "" {
		return badRequestf("operationId is required")
	}
	return nil
}

// track waits for an operation outcome, reporting events to the recorder.
// Fatal outcomes become classified errors.
func track[E, R any](ctx context.Context, s *Service, meta operation.Meta, events <-chan E, classify operation.Classifier[E, R], opts ...operation.Option[E]) (operation.Outcome[R], error) {
	out := operation.Track(ctx, s.recorder, meta, events, classify, opts...)
	if out.Status == operation.StatusFatal {
		s.logger.Warn("operation failed",
			"kind", meta.Kind,
			"federation_id", meta.Federation,
			"operation_id", meta.Operation,
			"error", out.Err,
		)
		return out, Classify(out.Err)
	}
	s.logger.Debug("operation finished",
		"kind", meta.Kind,
		"operation_id", meta.Operation,
		"status", out.Status.String(),
		"events", out.Events,
	)
	return out, nil
}

// stream is track with every event forwarded to emit. A failing emit
// stops consumption and its error is returned.
func stream[E, R any](ctx context.Context, s *Service, meta operation.Meta, events <-chan E, classify operation.Classifier[E, R], emit Emit) (operation.Outcome[R], error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var emitErr error
	out, err := track(ctx, s, meta, events, classify, operation.WithObserver(func(e E) {
		if emitErr != nil {
			return
		}
		if emitErr = emit(e); emitErr != nil {
			cancel()
		}
	}))
	if emitErr != nil {
		return out, emitErr
	}
	return out, err
}
