// Package command translates operator gestures into velocity commands.
package command

import (
	"github.com/okian/robodash/internal/domain/model"
)

// Reference deployment constants.
const (
	DefaultLinearSpeed  = 2.0
	DefaultAngularSpeed = 2.0
	DefaultInterface    = "topic"
	DefaultName         = "/turtle1/cmd_vel"
	DefaultType         = "geometry_msgs/msg/Twist"
)

// Speeds are the magnitudes used for each direction.
type Speeds struct {
	Linear  float64
	Angular float64
}

// DefaultSpeeds returns the reference speeds.
func DefaultSpeeds() Speeds {
	return Speeds{Linear: DefaultLinearSpeed, Angular: DefaultAngularSpeed}
}

// Target names the actuation endpoint a command is addressed to.
type Target struct {
	Interface string
	Name      string
	Type      string
}

// DefaultTarget returns the turtlesim velocity topic.
func DefaultTarget() Target {
	return Target{Interface: DefaultInterface, Name: DefaultName, Type: DefaultType}
}

// Translate maps a direction to a velocity command. Only Linear.X and
// Angular.Z are ever set; unknown directions give the zero command.
func Translate(dir model.Direction, s Speeds) model.VelocityCommand {
	var cmd model.VelocityCommand
	switch dir {
	case model.DirectionForward:
		cmd.Linear.X = s.Linear
	case model.DirectionBackward:
		cmd.Linear.X = -s.Linear
	case model.DirectionLeft:
		cmd.Angular.Z = s.Angular
	case model.DirectionRight:
		cmd.Angular.Z = -s.Angular
	}
	return cmd
}

// BuildRequest translates dir and wraps it in the dispatch payload.
func BuildRequest(dir model.Direction, t Target, s Speeds) model.CommandRequest {
	return model.CommandRequest{
		Interface: t.Interface,
		Name:      t.Name,
		Type:      t.Type,
		Payload:   Translate(dir, s),
	}
}
