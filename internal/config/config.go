// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and the environment on top.
// - Every constant of the dashboard (speeds, endpoint names, polling
//   interval, viewport) is configuration passed into constructors, never
//   process-wide mutable state.
package config

import (
	"fmt"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// APIBaseURL is the robot cloud API root.
	APIBaseURL string `koanf:"api_base_url"`

	// APIKey is sent as the air-api-key header on every call.
	APIKey string `koanf:"api_key"`

	// RobotID selects the robot whose cards are polled.
	RobotID string `koanf:"robot_id"`

	// PollIntervalMS is the refetch cadence of every card.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// RequestTimeoutMS bounds a single remote request; must be shorter than the poll interval.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// KeepStaleOnError keeps the last good data on display when a refetch fails.
	KeepStaleOnError bool `koanf:"keep_stale_on_error"`

	// LinearSpeed and AngularSpeed are the magnitudes of a direction command.
	LinearSpeed  float64 `koanf:"linear_speed"`
	AngularSpeed float64 `koanf:"angular_speed"`

	// MaxLinearSpeed and MaxAngularSpeed clamp dispatched commands; 0 disables.
	MaxLinearSpeed  float64 `koanf:"max_linear_speed"`
	MaxAngularSpeed float64 `koanf:"max_angular_speed"`

	// CommandInterface, CommandName and CommandType address the actuation topic.
	CommandInterface string `koanf:"command_interface"`
	CommandName      string `koanf:"command_name"`
	CommandType      string `koanf:"command_type"`

	// DataSource is the telemetry source holding pose samples.
	DataSource string `koanf:"data_source"`

	// PoseSampleLimit, CommandLimit and LogLimit size the polled pages.
	PoseSampleLimit int `koanf:"pose_sample_limit"`
	CommandLimit    int `koanf:"command_limit"`
	LogLimit        int `koanf:"log_limit"`

	// Map* describe the location card viewport.
	MapWidth      float64 `koanf:"map_width"`
	MapHeight     float64 `koanf:"map_height"`
	MapScale      float64 `koanf:"map_scale"`
	HeadingLength float64 `koanf:"heading_length"`
}

// New creates a Config populated with the reference deployment defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		APIBaseURL:       "https://api.airbotics.io",
		RobotID:          "robot0",
		PollIntervalMS:   1000,
		RequestTimeoutMS: 800,
		KeepStaleOnError: true,
		LinearSpeed:      2.0,
		AngularSpeed:     2.0,
		CommandInterface: "topic",
		CommandName:      "/turtle1/cmd_vel",
		CommandType:      "geometry_msgs/msg/Twist",
		DataSource:       "/turtle1/pose",
		PoseSampleLimit:  20,
		CommandLimit:     10,
		LogLimit:         10,
		MapWidth:         330,
		MapHeight:        300,
		MapScale:         30,
		HeadingLength:    20,
	}
}

// PollInterval returns the poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Validate checks the invariants the engine relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RobotID == "":
		return fmt.Errorf("%w: robot_id must not be empty", ErrInvalidConfig)
	case c.APIBaseURL == "":
		return fmt.Errorf("%w: api_base_url must not be empty", ErrInvalidConfig)
	case c.PollIntervalMS <= 0:
		return fmt.Errorf("%w: poll_interval_ms must be positive", ErrInvalidConfig)
	case c.RequestTimeoutMS <= 0 || c.RequestTimeoutMS >= c.PollIntervalMS:
		return fmt.Errorf("%w: request_timeout_ms must be positive and shorter than poll_interval_ms", ErrInvalidConfig)
	case c.PoseSampleLimit <= 0 || c.CommandLimit <= 0 || c.LogLimit <= 0:
		return fmt.Errorf("%w: page limits must be positive", ErrInvalidConfig)
	case c.MapScale <= 0 || c.MapHeight <= 0:
		return fmt.Errorf("%w: map_scale and map_height must be positive", ErrInvalidConfig)
	}
	return nil
}
