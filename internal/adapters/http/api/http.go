// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/robodash/internal/adapters/dispatch"
	"github.com/okian/robodash/internal/domain/model"
)

// Dependencies required by HTTP handlers. *service.Service implements it.
type Dependencies interface {
	CardDependencies
	CommandDependencies
	StreamDependencies
}

// Server wires HTTP routes for the dashboard API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	cardsHandler    *CardsHandler
	commandsHandler *CommandsHandler
	streamHandler   *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...StreamOption) *Server {
	stream := NewStreamHandler(deps, opts...)
	stats := NewStatsHandler(statsProvider)
	stats.clients = stream.Clients
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    stats,
		cardsHandler:    NewCardsHandler(deps),
		commandsHandler: NewCommandsHandler(deps),
		streamHandler:   stream,
	}
}

// Register attaches all HTTP routes to mux. Websocket streams end when ctx
// is done.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	s.streamHandler.base = ctx

	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/cards", MetricsMiddleware(s.cardsHandler.HandleGetCards, "cards"))
	mux.HandleFunc("/api/cards/", MetricsMiddleware(s.cardsHandler.HandleGetCard, "card"))
	mux.HandleFunc("/api/commands", MetricsMiddleware(s.commandsHandler.HandlePostCommand, "commands"))
	mux.HandleFunc("/api/commands/state", MetricsMiddleware(s.commandsHandler.HandleGetState, "commands_state"))
	mux.HandleFunc("/ws", s.streamHandler.HandleStream)
}

// commandRequest is the body of POST /api/commands.
type commandRequest struct {
	Direction string `json:"direction"`
}

func (c commandRequest) direction() (model.Direction, error) {
	d := model.ParseDirection(c.Direction)
	if d == model.DirectionNone && strings.ToLower(strings.TrimSpace(c.Direction)) != string(model.DirectionNone) {
		return d, ErrBadRequest
	}
	return d, nil
}

// ackResponse is returned for an accepted command.
type ackResponse struct {
	Status string         `json:"status"`
	State  dispatch.State `json:"state"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
