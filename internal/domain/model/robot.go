package model

import (
	"strings"
	"time"
)

// Vitals are resource usage percentages (0-100) reported by the robot.
type Vitals struct {
	CPU     float64 `json:"cpu"`
	Battery float64 `json:"battery"`
	RAM     float64 `json:"ram"`
	Disk    float64 `json:"disk"`
}

// RobotInfo is the vitals endpoint payload.
type RobotInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
	Vitals Vitals `json:"vitals"`
}

// Direction is a discrete operator gesture.
type Direction string

// Directions. None is the safe default for anything unrecognized.
const (
	DirectionNone     Direction = "none"
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionLeft     Direction = "left"
	DirectionRight    Direction = "right"
)

// Directions lists every valid direction, None last.
var Directions = []Direction{DirectionForward, DirectionBackward, DirectionLeft, DirectionRight, DirectionNone}

// ParseDirection maps s to a Direction, case-insensitively. Unknown input
// yields DirectionNone.
func ParseDirection(s string) Direction {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirectionForward, DirectionBackward, DirectionLeft, DirectionRight:
		return d
	}
	return DirectionNone
}

// Vector3 is a 3-axis vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// VelocityCommand mirrors a 6-DOF twist message. A ground robot only uses
// Linear.X and Angular.Z.
type VelocityCommand struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// IsZero reports whether the command produces no motion.
func (c VelocityCommand) IsZero() bool {
	return c == VelocityCommand{}
}

// CommandRequest is the body posted to the command-log endpoint.
type CommandRequest struct {
	Interface string          `json:"interface"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Payload   VelocityCommand `json:"payload"`
}

// CommandState is the backend lifecycle of a command record.
type CommandState string

// Known command states. Unknown backend values are kept verbatim.
const (
	CommandPending CommandState = "pending"
	CommandSent    CommandState = "sent"
	CommandAcked   CommandState = "acked"
	CommandFailed  CommandState = "failed"
)

// CommandRecord is one entry of the backend command history.
type CommandRecord struct {
	ID        string          `json:"uuid"`
	CreatedAt Timestamp       `json:"created_at"`
	Name      string          `json:"name"`
	State     CommandState    `json:"state"`
	Payload   VelocityCommand `json:"payload"`
}

// PoseSample is one 2D pose reading.
type PoseSample struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Theta      float64   `json:"theta"`
	CapturedAt time.Time `json:"captured_at"`
}

// PosePayload is the payload of a telemetry sample on the wire.
type PosePayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// TelemetrySample is one record of the telemetry endpoint.
type TelemetrySample struct {
	ID        string      `json:"uuid,omitempty"`
	Source    string      `json:"source,omitempty"`
	CreatedAt Timestamp   `json:"created_at"`
	Payload   PosePayload `json:"payload"`
}

// Pose converts the wire sample to a PoseSample.
func (s TelemetrySample) Pose() PoseSample {
	return PoseSample{
		X:          s.Payload.X,
		Y:          s.Payload.Y,
		Theta:      s.Payload.Theta,
		CapturedAt: s.CreatedAt.Time,
	}
}

// TrajectoryPoint is a screen-space point.
type TrajectoryPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LogLine is one robot log entry.
type LogLine struct {
	ID    string    `json:"uuid"`
	Stamp Timestamp `json:"stamp"`
	Level string    `json:"level"`
	Msg   string    `json:"msg"`
}
