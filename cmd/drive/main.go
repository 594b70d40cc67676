// Command drive dispatches a single motion command and prints the outcome.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/robodash/internal/adapters/dispatch"
	"github.com/okian/robodash/internal/adapters/remote"
	"github.com/okian/robodash/internal/config"
	"github.com/okian/robodash/internal/domain/command"
	"github.com/okian/robodash/internal/domain/model"
	"github.com/okian/robodash/pkg/logger"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 on success, 1 on a failed dispatch,
// 2 on bad usage.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "failed to load config:", err)
		return 2
	}

	fs := flag.NewFlagSet("drive", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		baseURL   = fs.String("url", cfg.APIBaseURL, "Robot cloud API base URL")
		apiKey    = fs.String("key", cfg.APIKey, "API key sent as air-api-key")
		robotID   = fs.String("robot", cfg.RobotID, "Robot id")
		direction = fs.String("direction", "", "forward, backward, left, right or none")
		timeout   = fs.Duration("timeout", cfg.RequestTimeout(), "Request timeout")
		verbose   = fs.Bool("verbose", false, "Log the request lifecycle")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dir := model.ParseDirection(*direction)
	if dir == model.DirectionNone && strings.ToLower(strings.TrimSpace(*direction)) != string(model.DirectionNone) {
		fmt.Fprintf(stderr, "unknown direction %q\n", *direction)
		fs.Usage()
		return 2
	}

	log := logger.Nop()
	if *verbose {
		if err := logger.Init(logger.WithOutput(stderr)); err == nil {
			log = logger.Named("drive")
		}
	}

	client, err := remote.New(*baseURL, *apiKey, remote.WithTimeout(*timeout), remote.WithLogger(log))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	d := dispatch.New(client, *robotID,
		dispatch.WithTarget(command.Target{
			Interface: cfg.CommandInterface,
			Name:      cfg.CommandName,
			Type:      cfg.CommandType,
		}),
		dispatch.WithSpeeds(command.Speeds{Linear: cfg.LinearSpeed, Angular: cfg.AngularSpeed}),
		dispatch.WithLimits(command.Limits{MaxLinear: cfg.MaxLinearSpeed, MaxAngular: cfg.MaxAngularSpeed}),
		dispatch.WithLogger(log),
	)

	dispatchErr := d.Dispatch(ctx, dir)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(d.State())

	if dispatchErr != nil {
		fmt.Fprintln(stderr, "dispatch failed:", dispatchErr)
		return 1
	}
	return 0
}
