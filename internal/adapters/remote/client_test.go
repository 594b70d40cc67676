package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/robodash/internal/domain/model"
)

type recorded struct {
	mu      sync.Mutex
	method  string
	path    string
	query   string
	apiKey  string
	reqID   string
	ctype   string
	payload string
}

func newRecordingServer(status int, body string) (*httptest.Server, *recorded) {
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.apiKey = r.Header.Get(HeaderAPIKey)
		rec.reqID = r.Header.Get(HeaderRequestID)
		rec.ctype = r.Header.Get("Content-Type")
		rec.payload = string(b)
		rec.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	return srv, rec
}

func TestClientFetch(t *testing.T) {
	Convey("Given a client pointed at a test backend", t, func() {
		srv, rec := newRecordingServer(http.StatusOK, `{"id":"robot0"}`)
		defer srv.Close()

		c, err := New(srv.URL, "secret")
		So(err, ShouldBeNil)

		Convey("When fetching a keyed resource", func() {
			key := model.NewResourceKey("robot0", model.KindTelemetry, url.Values{
				"source": {"/turtle1/pose"}, "offset": {"0"}, "limit": {"20"},
			})
			body, err := c.Fetch(context.Background(), key)

			Convey("Then the endpoint, query and headers are sent", func() {
				So(err, ShouldBeNil)
				So(string(body), ShouldEqual, `{"id":"robot0"}`)
				So(rec.method, ShouldEqual, http.MethodGet)
				So(rec.path, ShouldEqual, "/robots/robot0/data")
				So(rec.query, ShouldEqual, "limit=20&offset=0&source=%2Fturtle1%2Fpose")
				So(rec.apiKey, ShouldEqual, "secret")
				So(rec.reqID, ShouldNotBeEmpty)
			})
		})

		Convey("When posting a command", func() {
			key := model.NewResourceKey("robot0", model.KindCommands, nil)
			_, err := c.Post(context.Background(), key, map[string]string{"name": "/turtle1/cmd_vel"})

			Convey("Then the JSON body reaches the commands endpoint", func() {
				So(err, ShouldBeNil)
				So(rec.method, ShouldEqual, http.MethodPost)
				So(rec.path, ShouldEqual, "/robots/robot0/commands")
				So(rec.ctype, ShouldEqual, "application/json")
				So(rec.payload, ShouldEqual, `{"name":"/turtle1/cmd_vel"}`)
				So(rec.apiKey, ShouldEqual, "secret")
			})
		})
	})
}

func TestClientErrors(t *testing.T) {
	Convey("Given failure modes of the backend", t, func() {
		key := model.NewResourceKey("robot0", model.KindVitals, nil)

		Convey("When the backend answers non-2xx", func() {
			srv, _ := newRecordingServer(http.StatusUnauthorized, `{"error":"nope"}`)
			defer srv.Close()
			c, _ := New(srv.URL, "bad")

			_, err := c.Fetch(context.Background(), key)

			Convey("Then RemoteRejected carries the status code", func() {
				So(errors.Is(err, model.ErrRemoteRejected), ShouldBeTrue)
				So(model.AsErrorInfo(err).StatusCode, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When nothing listens", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			addr := srv.URL
			srv.Close()
			c, _ := New(addr, "k")

			_, err := c.Fetch(context.Background(), key)

			Convey("Then the failure is Unreachable", func() {
				So(errors.Is(err, model.ErrUnreachable), ShouldBeTrue)
			})
		})

		Convey("When the backend is slower than the request timeout", func() {
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer srv.Close()
			defer close(release)
			c, _ := New(srv.URL, "k", WithTimeout(30*time.Millisecond))

			_, err := c.Fetch(context.Background(), key)

			Convey("Then the failure is Timeout", func() {
				So(errors.Is(err, model.ErrTimeout), ShouldBeTrue)
			})
		})

		Convey("When the caller cancels", func() {
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer srv.Close()
			defer close(release)
			c, _ := New(srv.URL, "k", WithTimeout(5*time.Second))

			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(20*time.Millisecond, cancel)
			_, err := c.Fetch(ctx, key)

			Convey("Then the failure is Canceled", func() {
				So(errors.Is(err, model.ErrCanceled), ShouldBeTrue)
			})
		})

		Convey("When the key names an unknown kind", func() {
			c, _ := New("http://127.0.0.1:1", "k")
			_, err := c.Fetch(context.Background(), model.ResourceKey{RobotID: "robot0", Kind: "maps"})

			Convey("Then a typed error is still returned", func() {
				So(errors.Is(err, ErrUnsupportedKind), ShouldBeTrue)
				So(model.AsErrorInfo(err), ShouldNotBeNil)
			})
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given base URLs", t, func() {
		Convey("Then an empty base selects the default", func() {
			c, err := New("", "k")
			So(err, ShouldBeNil)
			u, _ := c.Endpoint(model.NewResourceKey("robot0", model.KindLogs, url.Values{"limit": {"10"}}))
			So(u, ShouldEqual, "https://api.airbotics.io/robots/robot0/logs?limit=10")
		})

		Convey("Then a relative base is rejected", func() {
			_, err := New("not a url", "k")
			So(errors.Is(err, ErrInvalidBaseURL), ShouldBeTrue)
		})
	})
}
