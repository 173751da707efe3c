package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Logger defines the logging interface used by sessions.
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

// Observer receives session activity, typically for metrics.
type Observer interface {
	SessionOpened()
	SessionClosed()
	SubscriptionStarted(method string)
	SubscriptionEnded(method string)
	RequestHandled(method, outcome string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) SessionOpened()                                {}
func (noopObserver) SessionClosed()                                {}
func (noopObserver) SubscriptionStarted(string)                    {}
func (noopObserver) SubscriptionEnded(string)                      {}
func (noopObserver) RequestHandled(string, string, time.Duration) {}

// Request outcomes reported to an Observer.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Config controls the transport behaviour of a Session.
type Config struct {
	MaxMessageSize int64
	PingInterval   time.Duration
	PongTimeout    time.Duration
	SendBuffer     int
}

func (c Config) withDefaults() Config {
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 1 << 20
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	return c
}

// Options holds the optional collaborators of a Session.
type Options struct {
	Config   Config
	Logger   Logger
	Observer Observer
}

// Session serves JSON-RPC over one WebSocket connection.
type Session struct {
	id       string
	conn     *websocket.Conn
	table    *Table
	cfg      Config
	logger   Logger
	observer Observer

	send  chan []byte
	state atomic.Int32
}

// NewSession wraps an upgraded connection. Call Serve to run it.
func NewSession(conn *websocket.Conn, table *Table, opts Options) *Session {
	s := &Session{
		id:       uuid.NewString(),
		conn:     conn,
		table:    table,
		cfg:      opts.Config.withDefaults(),
		logger:   opts.Logger,
		observer: opts.Observer,
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	s.send = make(chan []byte, s.cfg.SendBuffer)
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	for {
		cur := s.state.Load()
		if cur >= int32(st) {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			return
		}
	}
}

// Serve runs the session until the connection closes or ctx is cancelled.
// Every request task, including open subscriptions, has returned when Serve
// returns.
func (s *Session) Serve(ctx context.Context) error {
	s.observer.SessionOpened()
	defer s.observer.SessionClosed()
	s.logger.Debug("rpc session opened", "session_id", s.id, "remote_addr", s.conn.RemoteAddr().String())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.writePump(ctx) })
	g.Go(func() error {
		defer cancel()
		return s.readLoop(ctx, g)
	})

	err := g.Wait()
	s.setState(StateClosed)
	s.logger.Debug("rpc session closed", "session_id", s.id)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// readLoop accepts frames until the connection fails. Requests run in
// their own tasks so a slow handler never holds up the next frame.
func (s *Session) readLoop(ctx context.Context, g *errgroup.Group) error {
	defer s.setState(StateClosing)

	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	deadline := s.cfg.PingInterval + s.cfg.PongTimeout
	//nolint:errcheck // Best-effort deadline on connection setup
	s.conn.SetReadDeadline(time.Now().Add(deadline))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				s.logger.Warn("rpc read error", "session_id", s.id, "error", err)
			} else {
				s.logger.Debug("rpc connection closed", "session_id", s.id, "error", err)
			}
			return nil
		}
		//nolint:errcheck // Best-effort deadline reset
		s.conn.SetReadDeadline(time.Now().Add(deadline))

		req, id, err := ParseRequest(data)
		if err != nil {
			s.observer.RequestHandled("", OutcomeInvalid, 0)
			s.enqueue(ctx, errorFrame(id, err))
			continue
		}
		method, ok := s.table.Lookup(req.Method)
		if !ok {
			s.observer.RequestHandled("", OutcomeInvalid, 0)
			s.enqueue(ctx, errorFrame(id, fmt.Errorf("%w: %s", ErrUnknownMethod, req.Method)))
			continue
		}

		g.Go(func() error {
			if method.IsSubscription() {
				s.runSubscription(ctx, method, req)
			} else {
				s.runSingle(ctx, method, req)
			}
			return nil
		})
	}
}

func (s *Session) runSingle(ctx context.Context, m Method, req Request) {
	start := time.Now()
	v, err := m.Call(ctx, req.Params)
	if err != nil {
		s.observer.RequestHandled(m.Name(), OutcomeError, time.Since(start))
		s.logFailure(m, err)
		s.enqueue(ctx, errorFrame(req.ID, err))
		return
	}
	frame, err := resultFrame(req.ID, v)
	if err != nil {
		s.observer.RequestHandled(m.Name(), OutcomeError, time.Since(start))
		s.logger.Error("encoding rpc result failed", "method", m.Name(), "error", err)
		s.enqueue(ctx, errorFrame(req.ID, err))
		return
	}
	s.observer.RequestHandled(m.Name(), OutcomeOK, time.Since(start))
	s.enqueue(ctx, frame)
}

func (s *Session) runSubscription(ctx context.Context, m Method, req Request) {
	s.observer.SubscriptionStarted(m.Name())
	defer s.observer.SubscriptionEnded(m.Name())

	start := time.Now()
	err := m.Subscribe(ctx, req.Params, func(v any) error {
		frame, err := resultFrame(req.ID, v)
		if err != nil {
			return err
		}
		if !s.enqueue(ctx, frame) {
			return ctx.Err()
		}
		return nil
	})
	switch {
	case err == nil:
		s.observer.RequestHandled(m.Name(), OutcomeOK, time.Since(start))
	case ctx.Err() != nil:
		// Session is going away; nobody is left to tell.
		s.logger.Debug("rpc subscription cancelled", "session_id", s.id, "method", m.Name())
	default:
		s.observer.RequestHandled(m.Name(), OutcomeError, time.Since(start))
		s.logFailure(m, err)
		s.enqueue(ctx, errorFrame(req.ID, err))
	}
}

func (s *Session) logFailure(m Method, err error) {
	obj := errorObject(err)
	if obj.Code >= 500 {
		s.logger.Warn("rpc request failed", "session_id", s.id, "method", m.Name(), "kind", obj.Kind, "error", err)
		return
	}
	s.logger.Debug("rpc request rejected", "session_id", s.id, "method", m.Name(), "kind", obj.Kind, "error", err)
}

// enqueue hands a frame to the write pump. It reports false once the
// session is shutting down.
func (s *Session) enqueue(ctx context.Context, frame []byte) bool {
	select {
	case s.send <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

// writePump is the only writer on the connection.
func (s *Session) writePump(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			s.setState(StateClosing)
			//nolint:errcheck // Best-effort close handshake
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.PongTimeout))
			return nil
		case frame := <-s.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.PongTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.setState(StateClosing)
				return fmt.Errorf("writing frame: %w", err)
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.PongTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.setState(StateClosing)
				return fmt.Errorf("writing ping: %w", err)
			}
		}
	}
}
