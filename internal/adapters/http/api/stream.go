// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/robodash/internal/domain/types"
	"github.com/okian/robodash/pkg/logger"
	"github.com/okian/robodash/pkg/metrics"
)

const (
	defaultWriteWait  = 10 * time.Second
	defaultPingPeriod = 54 * time.Second
	maxMessageSize    = 4 * 1024
)

// StreamDependencies feeds the websocket card stream.
type StreamDependencies interface {
	Cards() types.Cards
	Watch(ctx context.Context) <-chan struct{}
}

// StreamOption configures a StreamHandler.
type StreamOption func(*StreamHandler)

// WithPingPeriod sets the keepalive ping interval. The peer must answer
// within 10/9 of it.
func WithPingPeriod(d time.Duration) StreamOption {
	return func(h *StreamHandler) {
		if d > 0 {
			h.pingPeriod = d
		}
	}
}

// WithWriteWait bounds every frame write.
func WithWriteWait(d time.Duration) StreamOption {
	return func(h *StreamHandler) {
		if d > 0 {
			h.writeWait = d
		}
	}
}

// WithStreamLogger sets the logger for connection lifecycle events.
func WithStreamLogger(l logger.Logger) StreamOption {
	return func(h *StreamHandler) {
		if l != nil {
			h.log = l
		}
	}
}

// StreamHandler pushes the card document on every card change.
type StreamHandler struct {
	deps       StreamDependencies
	upgrader   websocket.Upgrader
	writeWait  time.Duration
	pingPeriod time.Duration
	log        logger.Logger
	base       context.Context
	clients    atomic.Int64
}

// NewStreamHandler creates a new websocket stream handler.
func NewStreamHandler(deps StreamDependencies, opts ...StreamOption) *StreamHandler {
	h := &StreamHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard is served from anywhere on the operator network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeWait:  defaultWriteWait,
		pingPeriod: defaultPingPeriod,
		log:        logger.Nop(),
		base:       context.Background(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Clients returns the number of open streams.
func (h *StreamHandler) Clients() int { return int(h.clients.Load()) }

// HandleStream handles GET /ws requests.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.stream"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(WrapKind(op, ErrUpgrade, err)))
		return
	}
	id := uuid.NewString()

	h.clients.Add(1)
	metrics.AddWebsocketClients(1)
	h.log.Info(r.Context(), "stream opened", logger.String("id", id), logger.String("remote", r.RemoteAddr))
	defer func() {
		h.clients.Add(-1)
		metrics.AddWebsocketClients(-1)
		_ = conn.Close()
		h.log.Info(context.Background(), "stream closed", logger.String("id", id))
	}()

	ctx, cancel := context.WithCancel(h.base)
	defer cancel()

	go h.readLoop(conn, cancel)
	h.writeLoop(ctx, conn)
}

// readLoop discards client frames and cancels the stream once the peer is
// gone or stops answering pings.
func (h *StreamHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	pongWait := h.pingPeriod * 10 / 9

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug(context.Background(), "stream read failed", logger.Error(err))
			}
			return
		}
	}
}

func (h *StreamHandler) writeLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	changed := h.deps.Watch(ctx)
	if err := h.send(conn); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case _, ok := <-changed:
			if !ok {
				changed = nil
				continue
			}
			if err := h.send(conn); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) send(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	if err := conn.WriteJSON(h.deps.Cards()); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			h.log.Debug(context.Background(), "stream write failed", logger.Error(err))
		}
		return err
	}
	return nil
}
