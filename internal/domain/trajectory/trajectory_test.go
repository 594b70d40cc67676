package trajectory_test

import (
	"math"
	"testing"

	"github.com/okian/robodash/internal/domain/model"
	"github.com/okian/robodash/internal/domain/trajectory"
	. "github.com/smartystreets/goconvey/convey"
)

const eps = 1e-9

func TestTransform(t *testing.T) {
	Convey("Given the reference viewport", t, func() {
		vp := trajectory.Viewport{Width: 330, Height: 300, Scale: 30, HeadingLength: 20, MaxSamples: 20}

		Convey("When transforming a single sample at (1,1) facing +x", func() {
			tr := trajectory.Transform([]model.PoseSample{{X: 1, Y: 1, Theta: 0}}, vp)

			Convey("Then the marker sits at (30, 270)", func() {
				So(tr.Current, ShouldNotBeNil)
				So(tr.Current.Position, ShouldResemble, model.TrajectoryPoint{X: 30, Y: 270})
			})

			Convey("And the heading segment ends at (50, 270)", func() {
				So(tr.Current.Heading.X, ShouldAlmostEqual, 50, eps)
				So(tr.Current.Heading.Y, ShouldAlmostEqual, 270, eps)
			})

			Convey("And the path holds that single point", func() {
				So(tr.Path, ShouldResemble, []model.TrajectoryPoint{{X: 30, Y: 270}})
				So(tr.Points(), ShouldResemble, []float64{30, 270})
			})
		})

		Convey("When the robot faces world +y", func() {
			tr := trajectory.Transform([]model.PoseSample{{X: 2, Y: 3, Theta: math.Pi / 2}}, vp)

			Convey("Then the heading points up the screen", func() {
				So(tr.Current.Position, ShouldResemble, model.TrajectoryPoint{X: 60, Y: 210})
				So(tr.Current.Heading.X, ShouldAlmostEqual, 60, eps)
				So(tr.Current.Heading.Y, ShouldAlmostEqual, 190, eps)
			})
		})

		Convey("When transforming an empty sequence", func() {
			tr := trajectory.Transform(nil, vp)

			Convey("Then there is no marker and an empty path", func() {
				So(tr.Current, ShouldBeNil)
				So(tr.Path, ShouldBeEmpty)
				So(tr.Points(), ShouldBeEmpty)
			})
		})

		Convey("When transforming samples most recent first", func() {
			samples := []model.PoseSample{
				{X: 3, Y: 1, Theta: 0},
				{X: 2, Y: 1, Theta: 0},
				{X: 1, Y: 1, Theta: 0},
			}
			tr := trajectory.Transform(samples, vp)

			Convey("Then the newest sample drives the marker and order is kept", func() {
				So(tr.Current.Position.X, ShouldEqual, 90)
				So(tr.Points(), ShouldResemble, []float64{90, 270, 60, 270, 30, 270})
			})

			Convey("And the transform is deterministic", func() {
				So(trajectory.Transform(samples, vp), ShouldResemble, tr)
			})
		})

		Convey("When more samples than the cap are given", func() {
			samples := make([]model.PoseSample, 25)
			for i := range samples {
				samples[i] = model.PoseSample{X: float64(i)}
			}
			tr := trajectory.Transform(samples, vp)

			Convey("Then only the most recent MaxSamples are kept", func() {
				So(len(tr.Path), ShouldEqual, 20)
				So(tr.Path[19].X, ShouldEqual, 19*30)
			})
		})
	})

	Convey("Given the default viewport", t, func() {
		vp := trajectory.DefaultViewport()
		So(vp.Project(0, 0), ShouldResemble, model.TrajectoryPoint{X: 0, Y: 300})
		So(vp.Width, ShouldEqual, 330)
	})
}
