// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"net/url"
	"time"
)

// ResourceKind names one logical remote resource of a robot.
type ResourceKind string

// Known resource kinds.
const (
	KindVitals    ResourceKind = "vitals"
	KindCommands  ResourceKind = "commands"
	KindTelemetry ResourceKind = "telemetry"
	KindLogs      ResourceKind = "logs"
)

// Valid reports whether k is one of the known kinds.
func (k ResourceKind) Valid() bool {
	switch k {
	case KindVitals, KindCommands, KindTelemetry, KindLogs:
		return true
	}
	return false
}

// ResourceKey identifies one pollable resource. Query holds the canonical
// (key-sorted) encoding of the query parameters so that two keys built from
// the same inputs compare equal and can index a map.
type ResourceKey struct {
	RobotID string
	Kind    ResourceKind
	Query   string
}

// NewResourceKey builds a key; params may be nil.
func NewResourceKey(robotID string, kind ResourceKind, params url.Values) ResourceKey {
	return ResourceKey{
		RobotID: robotID,
		Kind:    kind,
		Query:   params.Encode(),
	}
}

// Values decodes Query back into url.Values. Keys built by NewResourceKey
// always decode cleanly.
func (k ResourceKey) Values() url.Values {
	v, err := url.ParseQuery(k.Query)
	if err != nil {
		return url.Values{}
	}
	return v
}

// String renders the key as robot/kind?query for logs.
func (k ResourceKey) String() string {
	if k.Query == "" {
		return fmt.Sprintf("%s/%s", k.RobotID, k.Kind)
	}
	return fmt.Sprintf("%s/%s?%s", k.RobotID, k.Kind, k.Query)
}

// Status is the lifecycle state of a cached query.
type Status string

// Query statuses.
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// QueryState is the cached view of one resource.
//
// A Success state keeps the last good Data while a refetch is Loading or
// after a failed refetch (Stale is then true and Err carries the failure).
type QueryState[T any] struct {
	Status        Status
	Data          T
	HasData       bool
	Err           *ErrorInfo
	Stale         bool
	Fetching      bool
	LastFetchedAt time.Time
	NextPollAt    time.Time
}
