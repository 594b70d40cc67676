package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/robodash/internal/domain/model"
)

type result struct {
	v   any
	err error
}

type call struct {
	ctx   context.Context
	key   model.ResourceKey
	reply chan result
}

// fakeFetcher hands every request to the test through calls and blocks
// until the test replies. With auto set it answers by itself.
type fakeFetcher struct {
	calls       chan *call
	ignoreAbort bool
	auto        func(model.ResourceKey) (any, error)
	delay       time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
	total     atomic.Int32
}

func newFake() *fakeFetcher {
	return &fakeFetcher{calls: make(chan *call, 64)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, key model.ResourceKey) (any, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	f.total.Add(1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if f.auto != nil {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, model.NewCanceled("fake", ctx.Err())
		}
		return f.auto(key)
	}

	c := &call{ctx: ctx, key: key, reply: make(chan result, 1)}
	f.calls <- c
	if f.ignoreAbort {
		r := <-c.reply
		return r.v, r.err
	}
	select {
	case r := <-c.reply:
		return r.v, r.err
	case <-ctx.Done():
		return nil, model.NewCanceled("fake", ctx.Err())
	}
}

func (f *fakeFetcher) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch")
		return nil
	}
}

func (f *fakeFetcher) none(wait time.Duration) bool {
	select {
	case <-f.calls:
		return false
	case <-time.After(wait):
		return true
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *manualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.t = m.t.Add(d)
	m.mu.Unlock()
}

var (
	vitalsKey = model.NewResourceKey("robot0", model.KindVitals, nil)
	logsKey   = model.NewResourceKey("robot0", model.KindLogs, nil)
)

func TestSubscribe(t *testing.T) {
	Convey("Given a cache with a long interval", t, func() {
		f := newFake()
		c := New(f, WithInterval(time.Hour))
		defer c.Close()
		ctx := context.Background()

		Convey("When the first subscriber arrives", func() {
			h := c.Subscribe(ctx, vitalsKey, 0)
			defer h.Unsubscribe()
			first := f.next(t)

			Convey("Then the entry is Loading with a fetch already issued", func() {
				So(first.key, ShouldResemble, vitalsKey)
				s := h.State()
				So(s.Status, ShouldEqual, model.StatusLoading)
				So(s.Fetching, ShouldBeTrue)
				So(s.HasData, ShouldBeFalse)
				So(s.NextPollAt.IsZero(), ShouldBeFalse)
			})

			Convey("And a successful reply moves it to Success", func() {
				first.reply <- result{v: "vitals-1"}
				So(eventually(func() bool { return h.State().Status == model.StatusSuccess }), ShouldBeTrue)

				s := h.State()
				So(s.Data, ShouldEqual, "vitals-1")
				So(s.HasData, ShouldBeTrue)
				So(s.Err, ShouldBeNil)
				So(s.Fetching, ShouldBeFalse)
				So(s.LastFetchedAt.IsZero(), ShouldBeFalse)

				select {
				case <-h.Changed():
				case <-time.After(time.Second):
					t.Fatal("no change notification")
				}
			})
		})

		Convey("When two subscribers share a key", func() {
			h1 := c.Subscribe(ctx, vitalsKey, time.Hour)
			h2 := c.Subscribe(ctx, vitalsKey, time.Minute)
			defer h1.Unsubscribe()
			defer h2.Unsubscribe()

			call1 := f.next(t)
			call1.reply <- result{v: 1}

			Convey("Then a single request serves both", func() {
				So(eventually(func() bool { return h2.State().HasData }), ShouldBeTrue)
				So(f.none(50*time.Millisecond), ShouldBeTrue)
				So(h1.State().Data, ShouldEqual, 1)
				So(f.total.Load(), ShouldEqual, 1)

				stats := c.Stats()
				So(stats.Entries, ShouldEqual, 1)
				So(stats.Subscriptions, ShouldEqual, 2)
			})

			Convey("And one unsubscribe keeps the schedule alive", func() {
				So(eventually(func() bool { return h1.State().HasData }), ShouldBeTrue)
				h1.Unsubscribe()
				h1.Unsubscribe()

				So(c.Stats().Subscriptions, ShouldEqual, 1)
				So(h2.State().NextPollAt.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When different keys are subscribed", func() {
			h1 := c.Subscribe(ctx, vitalsKey, 0)
			h2 := c.Subscribe(ctx, logsKey, 0)
			defer h1.Unsubscribe()
			defer h2.Unsubscribe()
			a, b := f.next(t), f.next(t)

			Convey("Then each key has its own request", func() {
				So(a.key, ShouldNotResemble, b.key)
				So(c.Stats().InFlight, ShouldEqual, 2)
			})
		})
	})
}

func TestSingleFlight(t *testing.T) {
	Convey("Given a key whose fetch is outstanding", t, func() {
		f := newFake()
		c := New(f, WithInterval(20*time.Millisecond))
		defer c.Close()

		h := c.Subscribe(context.Background(), vitalsKey, 0)
		defer h.Unsubscribe()
		held := f.next(t)

		Convey("When several ticks elapse", func() {
			noOverlap := f.none(120 * time.Millisecond)

			Convey("Then ticks are skipped rather than queued", func() {
				So(noOverlap, ShouldBeTrue)
				So(f.maxActive.Load(), ShouldEqual, 1)
			})

			Convey("And an explicit refresh is refused", func() {
				So(c.Refresh(context.Background(), vitalsKey), ShouldBeFalse)
			})

			Convey("And polling resumes once the request returns", func() {
				held.reply <- result{v: "late"}
				next := f.next(t)
				next.reply <- result{v: "next"}
				So(eventually(func() bool { return h.State().Data == "next" }), ShouldBeTrue)
				So(f.maxActive.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given subscribers churning on a fast schedule", t, func() {
		f := newFake()
		f.auto = func(model.ResourceKey) (any, error) { return "ok", nil }
		f.delay = 3 * time.Millisecond
		c := New(f, WithInterval(2*time.Millisecond))
		defer c.Close()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					h := c.Subscribe(context.Background(), vitalsKey, 0)
					time.Sleep(time.Millisecond)
					h.Unsubscribe()
				}
			}()
		}
		wg.Wait()

		Convey("Then no two requests for the key ever overlap", func() {
			So(f.total.Load(), ShouldBeGreaterThan, 0)
			So(f.maxActive.Load(), ShouldEqual, 1)
			So(c.Stats().Subscriptions, ShouldEqual, 0)
		})
	})
}

func TestFailurePolicy(t *testing.T) {
	boom := model.NewRemoteRejected("remote.fetch", 503)

	Convey("Given an entry that already holds data", t, func() {
		f := newFake()
		f.auto = func(model.ResourceKey) (any, error) { return "good", nil }

		Convey("When a refetch fails with keep-stale on", func() {
			c := New(f, WithInterval(time.Hour))
			defer c.Close()
			h := c.Subscribe(context.Background(), vitalsKey, 0)
			defer h.Unsubscribe()
			So(eventually(func() bool { return h.State().HasData }), ShouldBeTrue)

			f.auto = func(model.ResourceKey) (any, error) { return nil, boom }
			So(c.Refresh(context.Background(), vitalsKey), ShouldBeTrue)

			Convey("Then the data stays visible as stale Success", func() {
				s := h.State()
				So(s.Status, ShouldEqual, model.StatusSuccess)
				So(s.Data, ShouldEqual, "good")
				So(s.Stale, ShouldBeTrue)
				So(errors.Is(s.Err, model.ErrRemoteRejected), ShouldBeTrue)
				So(s.Err.StatusCode, ShouldEqual, 503)
			})

			Convey("And the next success clears the error", func() {
				f.auto = func(model.ResourceKey) (any, error) { return "better", nil }
				So(c.Refresh(context.Background(), vitalsKey), ShouldBeTrue)
				s := h.State()
				So(s.Data, ShouldEqual, "better")
				So(s.Stale, ShouldBeFalse)
				So(s.Err, ShouldBeNil)
			})
		})

		Convey("When a refetch fails in strict mode", func() {
			c := New(f, WithInterval(time.Hour), WithKeepStaleOnError(false))
			defer c.Close()
			h := c.Subscribe(context.Background(), vitalsKey, 0)
			defer h.Unsubscribe()
			So(eventually(func() bool { return h.State().HasData }), ShouldBeTrue)

			f.auto = func(model.ResourceKey) (any, error) { return nil, boom }
			So(c.Refresh(context.Background(), vitalsKey), ShouldBeTrue)

			Convey("Then the status is Error but the data is retained", func() {
				s := h.State()
				So(s.Status, ShouldEqual, model.StatusError)
				So(s.HasData, ShouldBeTrue)
				So(s.Data, ShouldEqual, "good")
				So(s.Err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given an entry that never fetched successfully", t, func() {
		for _, keep := range []bool{true, false} {
			f := newFake()
			f.auto = func(model.ResourceKey) (any, error) { return nil, errors.New("dial tcp: refused") }
			c := New(f, WithInterval(time.Hour), WithKeepStaleOnError(keep))
			h := c.Subscribe(context.Background(), vitalsKey, 0)

			ok := eventually(func() bool { return h.State().Status == model.StatusError })
			s := h.State()
			h.Unsubscribe()
			c.Close()

			Convey(fmt.Sprintf("Then a failure yields Error with keep-stale=%v", keep), func() {
				So(ok, ShouldBeTrue)
				So(s.HasData, ShouldBeFalse)
				So(errors.Is(s.Err, model.ErrUnreachable), ShouldBeTrue)
			})
		}
	})
}

func TestUnsubscribe(t *testing.T) {
	Convey("Given a request outstanding for the only subscriber", t, func() {
		f := newFake()
		f.ignoreAbort = true
		c := New(f, WithInterval(time.Hour))
		defer c.Close()

		h := c.Subscribe(context.Background(), vitalsKey, 0)
		held := f.next(t)
		defer func() {
			select {
			case held.reply <- result{}:
			default:
			}
		}()

		Convey("When the subscriber leaves", func() {
			h.Unsubscribe()

			Convey("Then the request context is cancelled", func() {
				So(held.ctx.Err(), ShouldNotBeNil)
			})

			Convey("And a late result is discarded", func() {
				held.reply <- result{v: "late"}
				So(eventually(func() bool { return c.Stats().InFlight == 0 }), ShouldBeTrue)

				s, ok := c.Peek(vitalsKey)
				So(ok, ShouldBeTrue)
				So(s.HasData, ShouldBeFalse)
				So(s.NextPollAt.IsZero(), ShouldBeTrue)
			})

			Convey("And a resubscribe waits for the aborted request before fetching", func() {
				h2 := c.Subscribe(context.Background(), vitalsKey, 0)
				defer h2.Unsubscribe()
				So(f.none(30*time.Millisecond), ShouldBeTrue)

				held.reply <- result{v: "late"}
				fresh := f.next(t)
				fresh.reply <- result{v: "fresh"}
				So(eventually(func() bool { return h2.State().Data == "fresh" }), ShouldBeTrue)
				So(f.maxActive.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a short interval", t, func() {
		f := newFake()
		f.auto = func(model.ResourceKey) (any, error) { return "v", nil }
		c := New(f, WithInterval(30*time.Millisecond))
		defer c.Close()

		h := c.Subscribe(context.Background(), vitalsKey, 0)
		So(eventually(func() bool { return h.State().HasData }), ShouldBeTrue)

		Convey("When the last subscriber leaves", func() {
			h.Unsubscribe()
			_, present := c.Peek(vitalsKey)

			Convey("Then the entry survives the grace interval and is then dropped", func() {
				So(present, ShouldBeTrue)
				So(eventually(func() bool {
					_, ok := c.Peek(vitalsKey)
					return !ok
				}), ShouldBeTrue)
				So(c.Stats().Entries, ShouldEqual, 0)
			})
		})
	})
}

func TestResubscribe(t *testing.T) {
	Convey("Given an entry fetched moments ago", t, func() {
		clock := &manualClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		f := newFake()
		c := New(f, WithInterval(time.Hour), WithClock(clock.Now))
		defer c.Close()

		h := c.Subscribe(context.Background(), vitalsKey, 0)
		f.next(t).reply <- result{v: "cached"}
		So(eventually(func() bool { return h.State().HasData }), ShouldBeTrue)
		fetchedAt := h.State().LastFetchedAt
		h.Unsubscribe()

		Convey("When resubscribing within the interval", func() {
			clock.Advance(10 * time.Minute)
			h2 := c.Subscribe(context.Background(), vitalsKey, 0)
			defer h2.Unsubscribe()

			Convey("Then cached data is reused without a new request", func() {
				So(f.none(50*time.Millisecond), ShouldBeTrue)
				s := h2.State()
				So(s.Data, ShouldEqual, "cached")
				So(s.NextPollAt, ShouldEqual, fetchedAt.Add(time.Hour))
			})
		})

		Convey("When resubscribing after the data aged past the interval", func() {
			clock.Advance(2 * time.Hour)
			h2 := c.Subscribe(context.Background(), vitalsKey, 0)
			defer h2.Unsubscribe()

			Convey("Then a fetch is issued immediately while stale data stays visible", func() {
				f.next(t)
				s := h2.State()
				So(s.Status, ShouldEqual, model.StatusSuccess)
				So(s.Data, ShouldEqual, "cached")
				So(s.Fetching, ShouldBeTrue)
			})
		})
	})
}

func TestClose(t *testing.T) {
	Convey("Given a cache with an outstanding request", t, func() {
		f := newFake()
		c := New(f, WithInterval(time.Hour))
		h := c.Subscribe(context.Background(), vitalsKey, 0)
		held := f.next(t)

		Convey("When it is closed", func() {
			c.Close()
			c.Close()

			Convey("Then the request is aborted and nothing remains", func() {
				So(held.ctx.Err(), ShouldNotBeNil)
				So(c.Stats().Entries, ShouldEqual, 0)
				So(h.State().HasData, ShouldBeFalse)
				h.Unsubscribe()
			})

			Convey("And later subscriptions report the closed cache", func() {
				late := c.Subscribe(context.Background(), logsKey, 0)
				s := late.State()
				So(s.Status, ShouldEqual, model.StatusError)
				So(errors.Is(s.Err, ErrClosed), ShouldBeTrue)
				So(c.Refresh(context.Background(), logsKey), ShouldBeFalse)
				late.Unsubscribe()
			})
		})
	})
}

func TestAs(t *testing.T) {
	Convey("Given an untyped state", t, func() {
		s := model.QueryState[any]{Status: model.StatusSuccess, Data: []model.LogLine{{Msg: "boot"}}, HasData: true}

		Convey("Then the matching type is exposed", func() {
			typed := As[[]model.LogLine](s)
			So(typed.HasData, ShouldBeTrue)
			So(typed.Data[0].Msg, ShouldEqual, "boot")
		})

		Convey("Then a mismatched type reads as absent data", func() {
			typed := As[model.RobotInfo](s)
			So(typed.HasData, ShouldBeFalse)
			So(typed.Status, ShouldEqual, model.StatusSuccess)
		})
	})
}
