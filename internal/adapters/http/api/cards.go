// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strings"

	"github.com/okian/robodash/internal/domain/model"
	"github.com/okian/robodash/internal/domain/types"
)

// CardDependencies exposes the card views.
type CardDependencies interface {
	General() types.Card[model.RobotInfo]
	Commands() types.Card[[]model.CommandRecord]
	Location() types.Card[types.Location]
	Logs() types.Card[[]model.LogLine]
	Cards() types.Cards
}

// CardsHandler handles card requests.
type CardsHandler struct {
	deps CardDependencies
}

// NewCardsHandler creates a new cards handler.
func NewCardsHandler(deps CardDependencies) *CardsHandler {
	return &CardsHandler{deps: deps}
}

// HandleGetCards handles GET /api/cards requests.
func (h *CardsHandler) HandleGetCards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Cards())
}

// HandleGetCard handles GET /api/cards/{card} requests.
func (h *CardsHandler) HandleGetCard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_card"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/cards/")
	var card any
	switch name {
	case "general":
		card = h.deps.General()
	case "commands":
		card = h.deps.Commands()
	case "location":
		card = h.deps.Location()
	case "logs":
		card = h.deps.Logs()
	default:
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrUnknownRoute, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, card)
}
