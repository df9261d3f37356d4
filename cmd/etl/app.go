package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-events-etl/internal/config"
	"github.com/couchcryptid/storm-events-etl/internal/observability"
	"github.com/couchcryptid/storm-events-etl/internal/pipeline"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	runner  *pipeline.Runner
	out     io.Writer
}

// setup reads .env (if present) and the environment, then prepares the
// workspace directories.
func (a *app) setup(command string, out, logOut io.Writer) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, logOut).
		With("run_id", uuid.NewString(), "command", command)

	ws, err := pipeline.NewWorkspace(cfg.LandingDir, cfg.ExtractDir)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.metrics = observability.NewMetrics()
	a.runner = pipeline.New(ws, logger, a.metrics, clockwork.NewRealClock(), cfg.ShutdownTimeout)
	a.out = out
	return nil
}

// finish prints the stage summary and exports metrics. The stage error is
// returned unchanged.
func (a *app) finish(rep pipeline.Report, err error) error {
	fmt.Fprintf(a.out, "%s: %d items, %d failed, %d records in %s\n",
		rep.Stage, rep.Items, len(rep.Failed), rep.Records, rep.Duration.Round(time.Millisecond))

	if a.cfg.MetricsTextfile != "" {
		if werr := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); werr != nil {
			a.logger.Error("write metrics textfile", "path", a.cfg.MetricsTextfile, "error", werr)
		}
	}
	return err
}
