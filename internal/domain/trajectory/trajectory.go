// Package trajectory turns pose samples into screen-space paths.
package trajectory

import (
	"math"

	"github.com/okian/robodash/internal/domain/model"
)

// Default viewport constants of the location card.
const (
	DefaultWidth         = 330
	DefaultHeight        = 300
	DefaultScale         = 30
	DefaultHeadingLength = 20
	DefaultMaxSamples    = 20
)

// Viewport holds the render constants. The same Scale and Height must be
// used for the path, the marker and the render bounds.
type Viewport struct {
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Scale         float64 `json:"scale"`
	HeadingLength float64 `json:"heading_length"`
	// MaxSamples caps the path length; <= 0 means no cap.
	MaxSamples int `json:"max_samples"`
}

// DefaultViewport returns the reference deployment viewport.
func DefaultViewport() Viewport {
	return Viewport{
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		Scale:         DefaultScale,
		HeadingLength: DefaultHeadingLength,
		MaxSamples:    DefaultMaxSamples,
	}
}

// Project maps a world position to screen space. World Y grows upward,
// screen Y grows downward.
func (v Viewport) Project(x, y float64) model.TrajectoryPoint {
	return model.TrajectoryPoint{
		X: x * v.Scale,
		Y: v.Height - y*v.Scale,
	}
}

// Marker is the current pose with its heading segment.
type Marker struct {
	Position model.TrajectoryPoint `json:"position"`
	// Heading is the far end of the heading segment starting at Position.
	Heading model.TrajectoryPoint `json:"heading"`
	Theta   float64               `json:"theta"`
}

// Trajectory is the renderable form of a pose stream.
type Trajectory struct {
	Current *Marker                 `json:"current,omitempty"`
	Path    []model.TrajectoryPoint `json:"path"`
}

// Points flattens the path to [x0, y0, x1, y1, ...].
func (t Trajectory) Points() []float64 {
	out := make([]float64, 0, len(t.Path)*2)
	for _, p := range t.Path {
		out = append(out, p.X, p.Y)
	}
	return out
}

// Transform projects samples, most recent first, into a trajectory. The
// first sample becomes the current pose marker. An empty input yields an
// empty path and no marker.
func Transform(samples []model.PoseSample, vp Viewport) Trajectory {
	if vp.MaxSamples > 0 && len(samples) > vp.MaxSamples {
		samples = samples[:vp.MaxSamples]
	}

	t := Trajectory{Path: make([]model.TrajectoryPoint, 0, len(samples))}
	for _, s := range samples {
		t.Path = append(t.Path, vp.Project(s.X, s.Y))
	}
	if len(samples) == 0 {
		return t
	}

	head := samples[0]
	pos := t.Path[0]
	t.Current = &Marker{
		Position: pos,
		Heading: model.TrajectoryPoint{
			X: pos.X + vp.HeadingLength*math.Cos(head.Theta),
			Y: pos.Y - vp.HeadingLength*math.Sin(head.Theta),
		},
		Theta: head.Theta,
	}
	return t
}
