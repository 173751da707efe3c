package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/fedimint-http/internal/auth"
	"github.com/nerrad567/fedimint-http/internal/infrastructure/config"
	"github.com/nerrad567/fedimint-http/internal/infrastructure/logging"
	"github.com/nerrad567/fedimint-http/internal/journal"
	"github.com/nerrad567/fedimint-http/internal/metrics"
	"github.com/nerrad567/fedimint-http/internal/registry"
	"github.com/nerrad567/fedimint-http/internal/rpc"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by components reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Mode     string
	Domain   string
	Logger   *logging.Logger
	Table    *rpc.Table
	Registry *registry.Registry

	Credential *auth.Credential
	Tickets    *auth.Tickets

	Metrics *metrics.Metrics         // optional
	Journal *journal.Journal         // optional
	Health  map[string]HealthChecker // optional, keyed by component name
	Version string
}

// Server is the HTTP server of the gateway.
//
// Create it with New and start it with Start. Handler exposes the router
// for tests and embedding.
type Server struct {
	cfg        config.APIConfig
	rpcCfg     rpc.Config
	mode       string
	domain     string
	logger     *logging.Logger
	table      *rpc.Table
	registry   *registry.Registry
	credential *auth.Credential
	tickets    *auth.Tickets
	metrics    *metrics.Metrics
	journal    *journal.Journal
	health     map[string]HealthChecker
	limiter    *ipLimiter
	version    string
	started    time.Time

	handler http.Handler
	server  *http.Server

	// baseCtx parents WebSocket sessions so Close can end them.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates an API server with the given dependencies.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Table == nil {
		return nil, fmt.Errorf("method table is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("client registry is required")
	}
	if deps.Credential == nil {
		return nil, fmt.Errorf("credential is required")
	}

	mode := deps.Mode
	if mode == "" {
		mode = config.ModeDefault
	}
	switch mode {
	case config.ModeDefault, config.ModeFedimint, config.ModeCashu, config.ModeWS:
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", mode)
	}

	if mode == config.ModeDefault || mode == config.ModeFedimint {
		for _, rt := range restRoutes {
			if _, ok := deps.Table.Lookup(rt.method); !ok {
				return nil, fmt.Errorf("method table has no %q for %s %s", rt.method, rt.httpMethod, rt.path)
			}
		}
	}

	tickets := deps.Tickets
	if tickets == nil {
		var err error
		if tickets, err = auth.NewTickets(deps.Security.TicketSecret, time.Duration(deps.Security.TicketTTL)*time.Second); err != nil {
			return nil, fmt.Errorf("creating ticket issuer: %w", err)
		}
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg: deps.Config,
		rpcCfg: rpc.Config{
			MaxMessageSize: int64(deps.WS.MaxMessageSize),
			PingInterval:   time.Duration(deps.WS.PingInterval) * time.Second,
			PongTimeout:    time.Duration(deps.WS.PongTimeout) * time.Second,
			SendBuffer:     deps.WS.SendBuffer,
		},
		mode:       mode,
		domain:     deps.Domain,
		logger:     deps.Logger,
		table:      deps.Table,
		registry:   deps.Registry,
		credential: deps.Credential,
		tickets:    tickets,
		metrics:    deps.Metrics,
		journal:    deps.Journal,
		health:     deps.Health,
		version:    deps.Version,
		started:    time.Now(),
		baseCtx:    baseCtx,
		cancel:     cancel,
	}
	if rl := deps.Security.RateLimit; rl.Enabled {
		s.limiter = newIPLimiter(rl.RequestsPerMinute, rl.Burst)
	}
	s.handler = s.buildRouter()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening for HTTP connections in a background goroutine.
// Listener errors other than a clean shutdown are logged.
func (s *Server) Start(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.cleanupLoop(ctx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.handler,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
				"mode", s.mode,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr, "mode", s.mode)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close ends open WebSocket sessions and gracefully shuts the server down,
// waiting up to 10 seconds for in-flight requests.
func (s *Server) Close() error {
	s.cancel()
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
