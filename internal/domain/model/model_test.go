package model_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/okian/robodash/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestResourceKey(t *testing.T) {
	Convey("Given resource keys built from query parameters", t, func() {
		a := model.NewResourceKey("robot0", model.KindTelemetry, url.Values{
			"source": {"/turtle1/pose"},
			"offset": {"0"},
			"limit":  {"20"},
		})
		b := model.NewResourceKey("robot0", model.KindTelemetry, url.Values{
			"limit":  {"20"},
			"source": {"/turtle1/pose"},
			"offset": {"0"},
		})

		Convey("Then equal inputs produce equal keys regardless of insertion order", func() {
			So(a, ShouldResemble, b)
			So(a == b, ShouldBeTrue)
			m := map[model.ResourceKey]int{a: 1}
			So(m[b], ShouldEqual, 1)
		})

		Convey("Then the query is canonical and decodable", func() {
			So(a.Query, ShouldEqual, "limit=20&offset=0&source=%2Fturtle1%2Fpose")
			So(a.Values().Get("source"), ShouldEqual, "/turtle1/pose")
		})

		Convey("Then different parameters produce different keys", func() {
			c := model.NewResourceKey("robot0", model.KindTelemetry, url.Values{"limit": {"10"}})
			So(a == c, ShouldBeFalse)
		})

		Convey("Then a key without parameters renders without a query", func() {
			k := model.NewResourceKey("robot0", model.KindVitals, nil)
			So(k.String(), ShouldEqual, "robot0/vitals")
			So(a.String(), ShouldStartWith, "robot0/telemetry?")
		})
	})
}

func TestParseDirection(t *testing.T) {
	Convey("Given direction strings", t, func() {
		cases := map[string]model.Direction{
			"forward":  model.DirectionForward,
			"Backward": model.DirectionBackward,
			" LEFT ":   model.DirectionLeft,
			"right":    model.DirectionRight,
			"none":     model.DirectionNone,
			"":         model.DirectionNone,
			"up":       model.DirectionNone,
		}
		for in, want := range cases {
			So(model.ParseDirection(in), ShouldEqual, want)
		}
	})
}

func TestErrorInfo(t *testing.T) {
	Convey("Given typed error values", t, func() {
		Convey("When a remote rejection is wrapped", func() {
			err := fmt.Errorf("poll: %w", model.NewRemoteRejected("remote.fetch", 503))

			Convey("Then errors.Is matches its sentinel only", func() {
				So(errors.Is(err, model.ErrRemoteRejected), ShouldBeTrue)
				So(errors.Is(err, model.ErrUnreachable), ShouldBeFalse)
			})

			Convey("And the message carries the status code", func() {
				So(err.Error(), ShouldContainSubstring, "status 503")
				So(model.AsErrorInfo(err).StatusCode, ShouldEqual, 503)
			})
		})

		Convey("When a foreign error is converted", func() {
			ei := model.AsErrorInfo(errors.New("dial tcp: refused"))

			Convey("Then it is classified as unreachable", func() {
				So(ei.Kind, ShouldEqual, model.KindUnreachable)
				So(errors.Is(ei, model.ErrUnreachable), ShouldBeTrue)
			})
		})

		Convey("When nil is converted", func() {
			So(model.AsErrorInfo(nil), ShouldBeNil)
		})

		Convey("When the cause is preserved", func() {
			cause := errors.New("unexpected EOF")
			ei := model.NewDecodeFailure("remote.decode", cause)
			So(errors.Is(ei, cause), ShouldBeTrue)
			So(errors.Is(ei, model.ErrDecodeFailure), ShouldBeTrue)
		})
	})
}

func TestCommandRecordDecoding(t *testing.T) {
	Convey("Given a command record as returned by the backend", t, func() {
		raw := `{"uuid":"c1","created_at":"2024-03-01T10:00:00Z","name":"/turtle1/cmd_vel","state":"acked",
			"payload":{"linear":{"x":-2,"y":0,"z":0},"angular":{"x":0,"y":0,"z":0}}}`

		var rec model.CommandRecord
		err := json.Unmarshal([]byte(raw), &rec)

		Convey("Then it decodes into the domain type", func() {
			So(err, ShouldBeNil)
			So(rec.ID, ShouldEqual, "c1")
			So(rec.State, ShouldEqual, model.CommandAcked)
			So(rec.Payload.Linear.X, ShouldEqual, -2.0)
			So(rec.CreatedAt.Year(), ShouldEqual, 2024)
		})
	})

	Convey("Given a telemetry sample", t, func() {
		raw := `{"created_at":"2024-03-01T10:00:01Z","payload":{"x":5.5,"y":1.25,"theta":3.14}}`
		var s model.TelemetrySample
		So(json.Unmarshal([]byte(raw), &s), ShouldBeNil)

		p := s.Pose()
		So(p.X, ShouldEqual, 5.5)
		So(p.Y, ShouldEqual, 1.25)
		So(p.Theta, ShouldEqual, 3.14)
		So(p.CapturedAt.Second(), ShouldEqual, 1)
	})
}
