// Package service wires the polling cache, the backend client and the
// command dispatcher into the dashboard cards served by the HTTP API.
package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/okian/robodash/internal/adapters/cache"
	"github.com/okian/robodash/internal/adapters/dispatch"
	"github.com/okian/robodash/internal/adapters/remote"
	"github.com/okian/robodash/internal/domain/command"
	"github.com/okian/robodash/internal/domain/model"
	"github.com/okian/robodash/internal/domain/trajectory"
	"github.com/okian/robodash/internal/domain/types"
	"github.com/okian/robodash/pkg/logger"
	"github.com/okian/robodash/pkg/metrics"
)

// cardKinds is the subscription order of the dashboard cards.
var cardKinds = []model.ResourceKind{ //nolint:gochecknoglobals // fixed card set
	model.KindVitals,
	model.KindCommands,
	model.KindTelemetry,
	model.KindLogs,
}

// Service owns the engine for one robot.
type Service struct {
	mu sync.RWMutex

	// Core components
	client     *remote.Client
	cache      *cache.Cache
	dispatcher *dispatch.Dispatcher
	handles    map[model.ResourceKind]*cache.Handle

	// Injected transports
	fetcher    cache.Fetcher
	poster     dispatch.Poster
	httpClient *http.Client

	// Configuration
	robotID        string
	baseURL        string
	apiKey         string
	pollInterval   time.Duration
	requestTimeout time.Duration
	keepStale      bool
	speeds         command.Speeds
	limits         command.Limits
	target         command.Target
	dataSource     string
	poseLimit      int
	commandLimit   int
	logLimit       int
	viewport       trajectory.Viewport

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	watchMu  sync.Mutex
	watchers map[chan struct{}]struct{}

	// Logging
	logger logger.Logger
}

// New constructs a new Service with the reference deployment defaults.
func New(opts ...Option) *Service {
	s := &Service{
		robotID:        "robot0",
		baseURL:        remote.DefaultBaseURL,
		pollInterval:   cache.DefaultInterval,
		requestTimeout: remote.DefaultTimeout,
		keepStale:      true,
		speeds:         command.DefaultSpeeds(),
		target:         command.DefaultTarget(),
		dataSource:     "/turtle1/pose",
		poseLimit:      trajectory.DefaultMaxSamples,
		commandLimit:   10,
		logLimit:       10,
		viewport:       trajectory.DefaultViewport(),
		watchers:       make(map[chan struct{}]struct{}),
		logger:         nil, // replaced in Start when not injected
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Key returns the resource key polled for a card kind.
func (s *Service) Key(kind model.ResourceKind) model.ResourceKey {
	var q url.Values
	switch kind {
	case model.KindCommands:
		q = url.Values{"limit": {strconv.Itoa(s.commandLimit)}}
	case model.KindTelemetry:
		q = url.Values{
			"source": {s.dataSource},
			"offset": {"0"},
			"limit":  {strconv.Itoa(s.poseLimit)},
		}
	case model.KindLogs:
		q = url.Values{"limit": {strconv.Itoa(s.logLimit)}}
	}
	return model.NewResourceKey(s.robotID, kind, q)
}

// Start builds the components and subscribes every card.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting dashboard service...",
		logger.String("robot", s.robotID),
		logger.String("api", s.baseURL))

	if s.fetcher == nil || s.poster == nil {
		opts := []remote.Option{
			remote.WithTimeout(s.requestTimeout),
			remote.WithLogger(s.logger.Named("remote")),
		}
		if s.httpClient != nil {
			opts = append(opts, remote.WithHTTPClient(s.httpClient))
		}
		client, err := remote.New(s.baseURL, s.apiKey, opts...)
		if err != nil {
			return fmt.Errorf("start service: %w", err)
		}
		s.client = client
	}

	fetcher := s.fetcher
	if fetcher == nil {
		fetcher = remote.NewResources(s.client)
	}
	poster := s.poster
	if poster == nil {
		poster = s.client
	}

	s.cache = cache.New(fetcher,
		cache.WithInterval(s.pollInterval),
		cache.WithKeepStaleOnError(s.keepStale),
		cache.WithLogger(s.logger.Named("cache")),
	)
	s.dispatcher = dispatch.New(poster, s.robotID,
		dispatch.WithTarget(s.target),
		dispatch.WithSpeeds(s.speeds),
		dispatch.WithLimits(s.limits),
		dispatch.WithLogger(s.logger.Named("dispatch")),
	)

	s.stopCh = make(chan struct{})
	s.handles = make(map[model.ResourceKind]*cache.Handle, len(cardKinds))
	for _, kind := range cardKinds {
		h := s.cache.Subscribe(ctx, s.Key(kind), s.pollInterval)
		s.handles[kind] = h
		s.wg.Add(1)
		go s.forward(h, s.stopCh)
	}

	s.started = true
	s.logger.Info(ctx, "dashboard service started",
		logger.Duration("pollInterval", s.pollInterval),
		logger.Duration("requestTimeout", s.requestTimeout),
		logger.Bool("keepStaleOnError", s.keepStale),
	)

	return nil
}

// Stop unsubscribes every card and closes the cache.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping dashboard service...")

	close(s.stopCh)
	for _, h := range s.handles {
		h.Unsubscribe()
	}
	s.cache.Close()
	s.wg.Wait()

	s.started = false
	s.logger.Info(context.Background(), "dashboard service stopped")
}

// forward relays change signals of one card to every watcher.
func (s *Service) forward(h *cache.Handle, stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-h.Changed():
			s.broadcast()
		}
	}
}

func (s *Service) broadcast() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch returns a channel signalled whenever any card changes. Signals
// coalesce. The channel is closed when ctx ends.
func (s *Service) Watch(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.watchMu.Lock()
	s.watchers[ch] = struct{}{}
	s.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		s.watchMu.Lock()
		delete(s.watchers, ch)
		s.watchMu.Unlock()
		close(ch)
	}()
	return ch
}

func (s *Service) state(kind model.ResourceKind) model.QueryState[any] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.QueryState[any]{Status: model.StatusIdle}
	}
	return s.handles[kind].State()
}

// General returns the vitals card.
func (s *Service) General() types.Card[model.RobotInfo] {
	return types.FromState(cache.As[model.RobotInfo](s.state(model.KindVitals)))
}

// Commands returns the command history card.
func (s *Service) Commands() types.Card[[]model.CommandRecord] {
	return types.FromState(cache.As[[]model.CommandRecord](s.state(model.KindCommands)))
}

// Location returns the trajectory card.
func (s *Service) Location() types.Card[types.Location] {
	poses := types.FromState(cache.As[[]model.PoseSample](s.state(model.KindTelemetry)))
	vp := s.viewport
	return types.MapCard(poses, func(samples []model.PoseSample) types.Location {
		tr := trajectory.Transform(samples, vp)
		return types.Location{Viewport: vp, Trajectory: tr, Points: tr.Points()}
	})
}

// Logs returns the robot log card.
func (s *Service) Logs() types.Card[[]model.LogLine] {
	return types.FromState(cache.As[[]model.LogLine](s.state(model.KindLogs)))
}

// Cards returns the whole dashboard document.
func (s *Service) Cards() types.Cards {
	return types.Cards{
		RobotID:     s.robotID,
		General:     s.General(),
		Commands:    s.Commands(),
		Location:    s.Location(),
		Logs:        s.Logs(),
		GeneratedAt: time.Now().UTC(),
	}
}

// Refresh refetches one card now, honouring single-flight.
func (s *Service) Refresh(ctx context.Context, kind model.ResourceKind) bool {
	s.mu.RLock()
	c := s.cache
	started := s.started
	s.mu.RUnlock()
	if !started {
		return false
	}
	return c.Refresh(ctx, s.Key(kind))
}

// Dispatch sends the command for dir. The command card learns about it on
// its next poll.
func (s *Service) Dispatch(ctx context.Context, dir model.Direction) error {
	s.mu.RLock()
	d := s.dispatcher
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	return d.Dispatch(ctx, dir)
}

// DispatchState returns the latest dispatch lifecycle state.
func (s *Service) DispatchState() dispatch.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dispatcher == nil {
		return dispatch.State{Phase: dispatch.PhaseIdle}
	}
	return s.dispatcher.State()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"robotId":          s.robotID,
		"pollIntervalMs":   s.pollInterval.Milliseconds(),
		"keepStaleOnError": s.keepStale,
	}

	s.watchMu.Lock()
	stats["watchers"] = len(s.watchers)
	s.watchMu.Unlock()

	if s.started {
		cs := s.cache.Stats()
		stats["entries"] = cs.Entries
		stats["subscriptions"] = cs.Subscriptions
		stats["inFlight"] = cs.InFlight
		stats["dispatchPhase"] = string(s.dispatcher.State().Phase)
	}

	return stats
}

// PublishMetrics sets the gauges derived from the cache. It is a no-op
// before Start.
func (s *Service) PublishMetrics() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return
	}
	metrics.UpdateCacheEntries(s.cache.Stats().Entries)
}
