package simbackend

import "time"

// Turtlesim world bounds and spawn pose.
const (
	WorldMin   = 0.0
	WorldMax   = 11.088889
	SpawnX     = 5.544445
	SpawnY     = 5.544445
	SpawnTheta = 0.0
)

// Config describes the simulated robot and its API.
type Config struct {
	RobotID    string
	RobotName  string
	APIKey     string        // empty disables the credential check
	DataSource string        // telemetry source that carries poses
	CommandFor time.Duration // how long one twist drives the turtle
	Substeps   int           // pose samples recorded per command
	MaxHistory int           // retained records per collection
}

// DefaultConfig mirrors the reference deployment.
func DefaultConfig() Config {
	return Config{
		RobotID:    "robot0",
		RobotName:  "turtle",
		DataSource: "/turtle1/pose",
		CommandFor: time.Second,
		Substeps:   5,
		MaxHistory: 1000,
	}
}
