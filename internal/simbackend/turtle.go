package simbackend

import (
	"math"
	"time"

	"github.com/okian/robodash/internal/domain/model"
)

// turtle integrates twist commands the way turtlesim does: unicycle motion
// clamped to the world square.
type turtle struct {
	x, y, theta float64
}

// drive applies cmd for d split into n steps and returns the pose after
// each step. hitWall reports whether any step was clamped.
func (t *turtle) drive(cmd model.VelocityCommand, d time.Duration, n int, start time.Time) (poses []model.PoseSample, hitWall bool) {
	if n <= 0 {
		n = 1
	}
	dt := d.Seconds() / float64(n)
	step := d / time.Duration(n)

	for i := 1; i <= n; i++ {
		t.theta = normalizeAngle(t.theta + cmd.Angular.Z*dt)
		nx := t.x + cmd.Linear.X*math.Cos(t.theta)*dt
		ny := t.y + cmd.Linear.X*math.Sin(t.theta)*dt

		cx, cy := clampWorld(nx), clampWorld(ny)
		if cx != nx || cy != ny {
			hitWall = true
		}
		t.x, t.y = cx, cy

		poses = append(poses, model.PoseSample{
			X:          t.x,
			Y:          t.y,
			Theta:      t.theta,
			CapturedAt: start.Add(time.Duration(i) * step),
		})
	}
	return poses, hitWall
}

func (t *turtle) pose(at time.Time) model.PoseSample {
	return model.PoseSample{X: t.x, Y: t.y, Theta: t.theta, CapturedAt: at}
}

func clampWorld(v float64) float64 {
	return math.Max(WorldMin, math.Min(WorldMax, v))
}

// normalizeAngle wraps a into [-pi, pi] in constant time.
func normalizeAngle(a float64) float64 {
	return math.Remainder(a, 2*math.Pi)
}

// validTwist reports whether every axis of cmd is finite and within
// maxTwist.
func validTwist(cmd model.VelocityCommand) bool {
	for _, v := range []float64{
		cmd.Linear.X, cmd.Linear.Y, cmd.Linear.Z,
		cmd.Angular.X, cmd.Angular.Y, cmd.Angular.Z,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxTwist {
			return false
		}
	}
	return true
}
