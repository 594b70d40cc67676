// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/robodash/internal/adapters/dispatch"
	"github.com/okian/robodash/internal/domain/model"
)

// DispatchTimeout bounds a command once it has been accepted for dispatch.
const DispatchTimeout = 5 * time.Second

// CommandDependencies drives the dispatcher.
type CommandDependencies interface {
	Dispatch(ctx context.Context, dir model.Direction) error
	DispatchState() dispatch.State
}

// CommandsHandler handles command requests.
type CommandsHandler struct {
	deps CommandDependencies
}

// NewCommandsHandler creates a new commands handler.
func NewCommandsHandler(deps CommandDependencies) *CommandsHandler {
	return &CommandsHandler{deps: deps}
}

// HandlePostCommand handles POST /api/commands requests. The call blocks
// until the backend answered; the command card shows the record on its
// next poll. A client that disconnects does not abort a motion command
// already handed to the dispatcher.
func (h *CommandsHandler) HandlePostCommand(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_command"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	dir, err := req.direction()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, err, errors.New("unknown direction "+req.Direction)))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), DispatchTimeout)
	defer cancel()
	err = h.deps.Dispatch(ctx, dir)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", State: h.deps.DispatchState()})
	case errors.Is(err, model.ErrBusy):
		writeError(w, http.StatusConflict, "busy", Wrap(op, err))
	default:
		var ei *model.ErrorInfo
		if !errors.As(err, &ei) {
			// Not a remote failure: the engine itself is unavailable.
			writeError(w, http.StatusServiceUnavailable, "unavailable", Wrap(op, err))
			return
		}
		writeError(w, http.StatusBadGateway, string(ei.Kind), Wrap(op, err))
	}
}

// HandleGetState handles GET /api/commands/state requests.
func (h *CommandsHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.DispatchState())
}
