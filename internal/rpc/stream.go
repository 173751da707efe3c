package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ServeStream runs one method over a raw WebSocket. The first client
// message is the params; every event is written as a bare JSON message and
// the connection is closed normally when the stream ends. A failure is
// written as an error object and closes the connection with an internal
// error code. The connection is pinged every PingInterval and the stream
// is cancelled when no pong arrives within PongTimeout.
func ServeStream(ctx context.Context, conn *websocket.Conn, m Method, opts Options) error {
	cfg := opts.Config.withDefaults()
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	defer conn.Close()

	conn.SetReadLimit(cfg.MaxMessageSize)
	readWait := cfg.PingInterval + cfg.PongTimeout
	//nolint:errcheck // Best-effort deadline while waiting for params
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	_, params, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("reading params: %w", err)
	}
	//nolint:errcheck // Best-effort deadline reset
	conn.SetReadDeadline(time.Now().Add(readWait))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The client sends nothing more; reading processes pongs and detects
	// the close or a missed pong.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// mu serialises data messages and pings.
	var mu sync.Mutex
	write := func(messageType int, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		//nolint:errcheck // Best-effort deadline; write error caught by caller
		conn.SetWriteDeadline(time.Now().Add(cfg.PongTimeout))
		return conn.WriteMessage(messageType, data)
	}

	pinged := make(chan struct{})
	go func() {
		defer close(pinged)
		ticker := time.NewTicker(cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					logger.Debug("raw stream ping failed", "method", m.Name(), "error", err)
					cancel()
					return
				}
			}
		}
	}()
	defer func() {
		cancel()
		<-pinged
	}()

	err = m.Subscribe(ctx, json.RawMessage(params), func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}
		return write(websocket.TextMessage, data)
	})

	deadline := time.Now().Add(cfg.PongTimeout)
	switch {
	case err == nil:
		//nolint:errcheck // Best-effort close handshake
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		logger.Debug("raw stream failed", "method", m.Name(), "error", err)
		if data, mErr := json.Marshal(struct {
			Error *ErrorObject `json:"error"`
		}{errorObject(err)}); mErr == nil {
			//nolint:errcheck // Best-effort error report before closing
			write(websocket.TextMessage, data)
		}
		//nolint:errcheck // Best-effort close handshake
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "stream failed"), deadline)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}
