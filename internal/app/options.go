package service

import (
	"net/http"
	"time"

	"github.com/okian/robodash/internal/adapters/cache"
	"github.com/okian/robodash/internal/adapters/dispatch"
	"github.com/okian/robodash/internal/config"
	"github.com/okian/robodash/internal/domain/command"
	"github.com/okian/robodash/internal/domain/trajectory"
	"github.com/okian/robodash/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRobotID selects the robot whose cards are polled.
func WithRobotID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.robotID = id
		}
	}
}

// WithAPI sets the backend base URL and credential.
func WithAPI(baseURL, apiKey string) Option {
	return func(s *Service) {
		if baseURL != "" {
			s.baseURL = baseURL
		}
		s.apiKey = apiKey
	}
}

// WithPollInterval sets the refetch cadence of every card.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithRequestTimeout bounds a single backend request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithKeepStaleOnError selects the cache failure policy.
func WithKeepStaleOnError(keep bool) Option {
	return func(s *Service) {
		s.keepStale = keep
	}
}

// WithSpeeds sets the direction magnitudes.
func WithSpeeds(sp command.Speeds) Option {
	return func(s *Service) {
		if sp.Linear > 0 && sp.Angular > 0 {
			s.speeds = sp
		}
	}
}

// WithLimits clamps dispatched commands.
func WithLimits(l command.Limits) Option {
	return func(s *Service) {
		s.limits = l
	}
}

// WithTarget sets the actuation endpoint.
func WithTarget(t command.Target) Option {
	return func(s *Service) {
		if t.Name != "" {
			s.target = t
		}
	}
}

// WithDataSource sets the telemetry source holding pose samples.
func WithDataSource(source string) Option {
	return func(s *Service) {
		if source != "" {
			s.dataSource = source
		}
	}
}

// WithPageLimits sets how many records each list card polls.
func WithPageLimits(poses, commands, logs int) Option {
	return func(s *Service) {
		if poses > 0 {
			s.poseLimit = poses
		}
		if commands > 0 {
			s.commandLimit = commands
		}
		if logs > 0 {
			s.logLimit = logs
		}
	}
}

// WithViewport sets the location card viewport.
func WithViewport(vp trajectory.Viewport) Option {
	return func(s *Service) {
		if vp.Scale > 0 && vp.Height > 0 {
			s.viewport = vp
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHTTPClient replaces the transport of the backend client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) {
		s.httpClient = hc
	}
}

// WithFetcher replaces the read path; the backend client is then not used
// for polling.
func WithFetcher(f cache.Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithPoster replaces the write path of the dispatcher.
func WithPoster(p dispatch.Poster) Option {
	return func(s *Service) {
		s.poster = p
	}
}

// FromConfig maps a loaded Config to service options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithRobotID(cfg.RobotID),
		WithAPI(cfg.APIBaseURL, cfg.APIKey),
		WithPollInterval(cfg.PollInterval()),
		WithRequestTimeout(cfg.RequestTimeout()),
		WithKeepStaleOnError(cfg.KeepStaleOnError),
		WithSpeeds(command.Speeds{Linear: cfg.LinearSpeed, Angular: cfg.AngularSpeed}),
		WithLimits(command.Limits{MaxLinear: cfg.MaxLinearSpeed, MaxAngular: cfg.MaxAngularSpeed}),
		WithTarget(command.Target{Interface: cfg.CommandInterface, Name: cfg.CommandName, Type: cfg.CommandType}),
		WithDataSource(cfg.DataSource),
		WithPageLimits(cfg.PoseSampleLimit, cfg.CommandLimit, cfg.LogLimit),
		WithViewport(trajectory.Viewport{
			Width:         cfg.MapWidth,
			Height:        cfg.MapHeight,
			Scale:         cfg.MapScale,
			HeadingLength: cfg.HeadingLength,
			MaxSamples:    cfg.PoseSampleLimit,
		}),
	}
}
