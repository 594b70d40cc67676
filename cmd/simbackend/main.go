package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/robodash/internal/simbackend"
	"github.com/okian/robodash/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

func main() {
	def := simbackend.DefaultConfig()
	var (
		addr        = flag.String("addr", ":9090", "Listen address")
		robotID     = flag.String("robot", def.RobotID, "Robot id served under /robots/{id}")
		apiKey      = flag.String("key", "", "Required air-api-key header value (empty disables the check)")
		source      = flag.String("source", def.DataSource, "Telemetry source carrying poses")
		commandFor  = flag.Duration("command-for", def.CommandFor, "How long one command drives the turtle")
		latency     = flag.Duration("latency", 0, "Artificial latency added to every request")
		failureRate = flag.Float64("failure-rate", 0, "Fraction of GET requests answered with 503")
		logFormat   = flag.String("log-format", "text", "Log format: text or json")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("simbackend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := simbackend.NewServer(simbackend.Config{
		RobotID:    *robotID,
		APIKey:     *apiKey,
		DataSource: *source,
		CommandFor: *commandFor,
	},
		simbackend.WithLogger(log),
		simbackend.WithLatency(*latency),
		simbackend.WithFailureRate(*failureRate),
	)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "simulated backend listening",
		logger.String("addr", *addr),
		logger.String("robot", *robotID),
		logger.Float64("failureRate", *failureRate))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(ctx, "simulated backend failed", logger.Error(err))
		os.Exit(1)
	}
}
