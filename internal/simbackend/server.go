// Package simbackend serves a simulated robot cloud API.
//
// It speaks the same wire format as the real backend: vitals, a command log
// that drives a simulated turtle, pose telemetry and log lines. Commands are
// recorded as pending and acknowledged on the next read of the log.
package simbackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/robodash/internal/domain/model"
	"github.com/okian/robodash/pkg/logger"
)

// Sentinel errors returned in response bodies.
var (
	ErrUnauthorized = errors.New("missing or invalid api key")
	ErrUnknownRobot = errors.New("robot not found")
	ErrBadCommand   = errors.New("invalid command")
	ErrUnavailable  = errors.New("service unavailable")
)

const (
	defaultLimit = 10
	maxLimit     = 100
	maxTwist     = 100.0 // per-axis bound on accepted velocities
)

// Server is an http.Handler; all state lives in memory.
type Server struct {
	cfg         Config
	log         logger.Logger
	now         func() time.Time
	latency     time.Duration
	failureRate float64

	mu        sync.Mutex
	turtle    turtle
	commands  []model.CommandRecord   // most recent first
	telemetry []model.TelemetrySample // most recent first
	logs      []model.LogLine         // most recent first
	battery   float64
	mux       *http.ServeMux
}

// NewServer creates a Server with the turtle at its spawn pose.
func NewServer(cfg Config, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.RobotID == "" {
		cfg.RobotID = def.RobotID
	}
	if cfg.RobotName == "" {
		cfg.RobotName = def.RobotName
	}
	if cfg.DataSource == "" {
		cfg.DataSource = def.DataSource
	}
	if cfg.CommandFor <= 0 {
		cfg.CommandFor = def.CommandFor
	}
	if cfg.Substeps <= 0 {
		cfg.Substeps = def.Substeps
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = def.MaxHistory
	}

	s := &Server{
		cfg:     cfg,
		log:     logger.Nop(),
		now:     time.Now,
		turtle:  turtle{x: SpawnX, y: SpawnY, theta: SpawnTheta},
		battery: 100,
	}
	for _, opt := range opts {
		opt(s)
	}

	now := s.now()
	s.pushTelemetry(s.turtle.pose(now))
	s.pushLog(now, "info", fmt.Sprintf("Spawning turtle [turtle1] at x=[%f], y=[%f], theta=[%f]", SpawnX, SpawnY, SpawnTheta))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /robots/{id}", s.handleVitals)
	mux.HandleFunc("GET /robots/{id}/commands", s.handleListCommands)
	mux.HandleFunc("POST /robots/{id}/commands", s.handlePostCommand)
	mux.HandleFunc("GET /robots/{id}/data", s.handleData)
	mux.HandleFunc("GET /robots/{id}/logs", s.handleLogs)
	s.mux = mux
	return s
}

// ServeHTTP checks the credential and robot id, then routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}
	if s.cfg.APIKey != "" && r.Header.Get("air-api-key") != s.cfg.APIKey {
		writeError(w, http.StatusUnauthorized, ErrUnauthorized)
		return
	}
	if r.Method == http.MethodGet && s.failureRate > 0 && rand.Float64() < s.failureRate {
		writeError(w, http.StatusServiceUnavailable, ErrUnavailable)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) robotOK(w http.ResponseWriter, r *http.Request) bool {
	if r.PathValue("id") != s.cfg.RobotID {
		writeError(w, http.StatusNotFound, ErrUnknownRobot)
		return false
	}
	return true
}

func (s *Server) handleVitals(w http.ResponseWriter, r *http.Request) {
	if !s.robotOK(w, r) {
		return
	}
	s.mu.Lock()
	recent := 0
	cutoff := s.now().Add(-10 * s.cfg.CommandFor)
	for _, c := range s.commands {
		if c.CreatedAt.Before(cutoff) {
			break
		}
		recent++
	}
	info := model.RobotInfo{
		ID:     s.cfg.RobotID,
		Name:   s.cfg.RobotName,
		Online: true,
		Vitals: model.Vitals{
			CPU:     math.Min(100, 4+float64(recent)*9),
			Battery: math.Round(s.battery*10) / 10,
			RAM:     37.5,
			Disk:    18.2,
		},
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if !s.robotOK(w, r) {
		return
	}
	limit, offset := page(r)

	s.mu.Lock()
	out := window(s.commands, offset, limit)
	// A record is acknowledged once it has been observed.
	for i := range s.commands {
		if s.commands[i].State == model.CommandPending {
			s.commands[i].State = model.CommandAcked
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePostCommand(w http.ResponseWriter, r *http.Request) {
	if !s.robotOK(w, r) {
		return
	}
	var req model.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrBadCommand, err))
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Type) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: name and type are required", ErrBadCommand))
		return
	}
	if !validTwist(req.Payload) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: velocities must be finite and within %g", ErrBadCommand, maxTwist))
		return
	}

	s.mu.Lock()
	now := s.now()
	rec := model.CommandRecord{
		ID:        uuid.NewString(),
		CreatedAt: model.NewTimestamp(now),
		Name:      req.Name,
		State:     model.CommandPending,
		Payload:   req.Payload,
	}
	s.commands = prepend(s.commands, rec, s.cfg.MaxHistory)
	s.battery = math.Max(0, s.battery-0.1)

	poses, hitWall := s.turtle.drive(req.Payload, s.cfg.CommandFor, s.cfg.Substeps, now)
	for _, p := range poses {
		s.pushTelemetry(p)
	}
	s.pushLog(now, "info", fmt.Sprintf("cmd_vel linear.x=%.2f angular.z=%.2f", req.Payload.Linear.X, req.Payload.Angular.Z))
	if hitWall {
		s.pushLog(now, "warn", "Oh no! I hit the wall!")
	}
	s.mu.Unlock()

	s.log.Debug(r.Context(), "command recorded",
		logger.String("id", rec.ID),
		logger.Float64("linear_x", req.Payload.Linear.X),
		logger.Float64("angular_z", req.Payload.Angular.Z))
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if !s.robotOK(w, r) {
		return
	}
	limit, offset := page(r)
	source := r.URL.Query().Get("source")

	s.mu.Lock()
	out := []model.TelemetrySample{}
	if source == "" || source == s.cfg.DataSource {
		out = window(s.telemetry, offset, limit)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !s.robotOK(w, r) {
		return
	}
	limit, offset := page(r)

	s.mu.Lock()
	out := window(s.logs, offset, limit)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// pushTelemetry and pushLog require s.mu unless called from NewServer.
func (s *Server) pushTelemetry(p model.PoseSample) {
	s.telemetry = prepend(s.telemetry, model.TelemetrySample{
		ID:        uuid.NewString(),
		Source:    s.cfg.DataSource,
		CreatedAt: model.NewTimestamp(p.CapturedAt),
		Payload:   model.PosePayload{X: p.X, Y: p.Y, Theta: p.Theta},
	}, s.cfg.MaxHistory)
}

func (s *Server) pushLog(at time.Time, level, msg string) {
	s.logs = prepend(s.logs, model.LogLine{
		ID:    uuid.NewString(),
		Stamp: model.NewTimestamp(at),
		Level: level,
		Msg:   msg,
	}, s.cfg.MaxHistory)
}

func prepend[T any](list []T, v T, limit int) []T {
	list = append([]T{v}, list...)
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

// window copies list[offset:offset+limit] so callers can encode it unlocked.
func window[T any](list []T, offset, limit int) []T {
	out := []T{}
	if offset >= len(list) {
		return out
	}
	end := min(offset+limit, len(list))
	return append(out, list[offset:end]...)
}

func page(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = defaultLimit
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = min(v, maxLimit)
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
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

func writeError(w http.ResponseWriter, status int, err error) {
	code := strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}
