// Package dispatch posts motion commands with at most one in flight.
//
// A dispatch issued while another is in flight is rejected with a Busy
// error rather than queued. Failures are returned to the caller and never
// retried. The command-log cache is not touched; the next poll of the
// commands resource is the only way the new record becomes visible.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/robodash/internal/domain/command"
	"github.com/okian/robodash/internal/domain/model"
	"github.com/okian/robodash/pkg/logger"
	"github.com/okian/robodash/pkg/metrics"
)

// Poster sends a JSON body to the endpoint of a key. *remote.Client
// implements it.
type Poster interface {
	Post(ctx context.Context, key model.ResourceKey, body any) ([]byte, error)
}

// Phase is the dispatcher lifecycle.
type Phase string

// Phases.
const (
	PhaseIdle     Phase = "idle"
	PhaseInFlight Phase = "in_flight"
	PhaseSettled  Phase = "settled"
)

// Outcome of a settled dispatch.
type Outcome string

// Outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// State describes the latest dispatch.
type State struct {
	Phase     Phase                 `json:"phase"`
	Outcome   Outcome               `json:"outcome,omitempty"`
	ID        string                `json:"id,omitempty"`
	Direction model.Direction       `json:"direction,omitempty"`
	Command   model.VelocityCommand `json:"command"`
	Err       *model.ErrorInfo      `json:"-"`
	Error     string                `json:"error,omitempty"`
	StartedAt time.Time             `json:"started_at,omitempty"`
	SettledAt time.Time             `json:"settled_at,omitempty"`
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	poster Poster
	key    model.ResourceKey
	target command.Target
	speeds command.Speeds
	limits command.Limits
	log    logger.Logger
	now    func() time.Time

	mu    sync.Mutex
	state State
}

// New creates a Dispatcher posting to the commands resource of robotID.
func New(poster Poster, robotID string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		poster: poster,
		key:    model.NewResourceKey(robotID, model.KindCommands, nil),
		target: command.DefaultTarget(),
		speeds: command.DefaultSpeeds(),
		log:    logger.Nop(),
		now:    time.Now,
		state:  State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends the command for dir and blocks until it settles.
func (d *Dispatcher) Dispatch(ctx context.Context, dir model.Direction) error {
	req, id, err := d.begin(dir)
	if err != nil {
		return err
	}
	return d.run(ctx, dir, id, req)
}

// Go is the asynchronous form of Dispatch. The Busy decision is made before
// Go returns; the channel yields exactly one value.
func (d *Dispatcher) Go(ctx context.Context, dir model.Direction) <-chan error {
	out := make(chan error, 1)
	req, id, err := d.begin(dir)
	if err != nil {
		out <- err
		return out
	}
	go func() {
		out <- d.run(ctx, dir, id, req)
	}()
	return out
}

// State returns the latest dispatch state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) begin(dir model.Direction) (model.CommandRequest, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Phase == PhaseInFlight {
		metrics.RecordDispatchRejected()
		return model.CommandRequest{}, "", model.NewBusy("dispatch")
	}

	req := command.BuildRequest(dir, d.target, d.speeds)
	req.Payload = command.Clamp(req.Payload, d.limits)
	id := uuid.NewString()
	d.state = State{
		Phase:     PhaseInFlight,
		ID:        id,
		Direction: dir,
		Command:   req.Payload,
		StartedAt: d.now(),
	}
	return req, id, nil
}

func (d *Dispatcher) run(ctx context.Context, dir model.Direction, id string, req model.CommandRequest) error {
	start := time.Now()
	_, err := d.poster.Post(ctx, d.key, req)
	metrics.RecordDispatchLatency(float64(time.Since(start).Microseconds()) / 1000)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.state.Phase = PhaseSettled
	d.state.SettledAt = d.now()
	if err != nil {
		ei := model.AsErrorInfo(err)
		d.state.Outcome = OutcomeFailure
		d.state.Err = ei
		d.state.Error = ei.Error()
		metrics.RecordDispatch(string(dir), string(OutcomeFailure))
		d.log.Warn(ctx, "command dispatch failed",
			logger.String("id", id),
			logger.String("direction", string(dir)),
			logger.String("kind", string(ei.Kind)),
			logger.Error(err))
		return ei
	}

	d.state.Outcome = OutcomeSuccess
	metrics.RecordDispatch(string(dir), string(OutcomeSuccess))
	d.log.Info(ctx, "command dispatched",
		logger.String("id", id),
		logger.String("direction", string(dir)),
		logger.Float64("linear_x", req.Payload.Linear.X),
		logger.Float64("angular_z", req.Payload.Angular.Z))
	return nil
}
