// Package types contains the card view shapes served to dashboard clients.
package types

import (
	"time"

	"github.com/okian/robodash/internal/domain/model"
	"github.com/okian/robodash/internal/domain/trajectory"
)

// Card is the client view of one cached resource. "Loading", "An error
// occurred" and empty-list notices are derived by clients from Status and
// Data.
type Card[T any] struct {
	Status        model.Status `json:"status"`
	Stale         bool         `json:"stale"`
	Fetching      bool         `json:"fetching"`
	Error         string       `json:"error,omitempty"`
	ErrorKind     string       `json:"error_kind,omitempty"`
	LastFetchedAt *time.Time   `json:"last_fetched_at,omitempty"`
	NextPollAt    *time.Time   `json:"next_poll_at,omitempty"`
	Data          *T           `json:"data"`
}

// FromState builds a Card from a typed cache state.
func FromState[T any](s model.QueryState[T]) Card[T] {
	c := Card[T]{
		Status:        s.Status,
		Stale:         s.Stale,
		Fetching:      s.Fetching,
		LastFetchedAt: timePtr(s.LastFetchedAt),
		NextPollAt:    timePtr(s.NextPollAt),
	}
	if s.Err != nil {
		c.Error = s.Err.Error()
		c.ErrorKind = string(s.Err.Kind)
	}
	if s.HasData {
		d := s.Data
		c.Data = &d
	}
	return c
}

// MapCard converts the data of c with fn, keeping the status fields.
func MapCard[T, U any](c Card[T], fn func(T) U) Card[U] {
	out := Card[U]{
		Status:        c.Status,
		Stale:         c.Stale,
		Fetching:      c.Fetching,
		Error:         c.Error,
		ErrorKind:     c.ErrorKind,
		LastFetchedAt: c.LastFetchedAt,
		NextPollAt:    c.NextPollAt,
	}
	if c.Data != nil {
		u := fn(*c.Data)
		out.Data = &u
	}
	return out
}

// Location is the data of the location card.
type Location struct {
	Viewport   trajectory.Viewport   `json:"viewport"`
	Trajectory trajectory.Trajectory `json:"trajectory"`
	// Points is the flat [x0, y0, x1, y1, ...] polyline form.
	Points []float64 `json:"points"`
}

// Cards is the full dashboard document.
type Cards struct {
	RobotID     string                      `json:"robot_id"`
	General     Card[model.RobotInfo]       `json:"general"`
	Commands    Card[[]model.CommandRecord] `json:"commands"`
	Location    Card[Location]              `json:"location"`
	Logs        Card[[]model.LogLine]       `json:"logs"`
	GeneratedAt time.Time                   `json:"generated_at"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
