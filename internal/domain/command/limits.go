package command

import "github.com/okian/robodash/internal/domain/model"

// Limits bounds the magnitude of a command. Zero disables a bound.
type Limits struct {
	MaxLinear  float64
	MaxAngular float64
}

// clamp restricts v to [-limit, limit]; limit <= 0 leaves v unchanged.
func clamp(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// Clamp returns cmd with every axis bounded by l. It is applied after
// Translate, never inside it.
func Clamp(cmd model.VelocityCommand, l Limits) model.VelocityCommand {
	return model.VelocityCommand{
		Linear: model.Vector3{
			X: clamp(cmd.Linear.X, l.MaxLinear),
			Y: clamp(cmd.Linear.Y, l.MaxLinear),
			Z: clamp(cmd.Linear.Z, l.MaxLinear),
		},
		Angular: model.Vector3{
			X: clamp(cmd.Angular.X, l.MaxAngular),
			Y: clamp(cmd.Angular.Y, l.MaxAngular),
			Z: clamp(cmd.Angular.Z, l.MaxAngular),
		},
	}
}
