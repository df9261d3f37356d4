package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-events-etl/internal/domain"
	"github.com/couchcryptid/storm-events-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Stage names used in logs, metrics and item errors.
const (
	StageDownload  = "download"
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
	StagePublish   = "publish"
	StageCleanup   = "cleanup"
)

// Locator maps a year range to archive names.
type Locator interface {
	Locate(start, end int) ([]string, error)
}

// Fetcher downloads one archive into w.
type Fetcher interface {
	Fetch(ctx context.Context, name string, w io.Writer) (int64, error)
}

// Sink receives the records of one batch file. Load closes it when done.
type Sink interface {
	Insert(ctx context.Context, batch domain.Batch) (int, error)
	Close(ctx context.Context) error
}

// Report summarizes one stage run.
type Report struct {
	Stage    string
	Items    int // items attempted, failed ones included
	Records  int // rows written (transform) or records stored (load, publish)
	Duration time.Duration
	Failed   domain.ItemErrors
}

// Runner executes the ETL stages against one workspace. Stages run
// sequentially and never call each other.
type Runner struct {
	ws           Workspace
	logger       *slog.Logger
	metrics      *observability.Metrics
	clock        clockwork.Clock
	closeTimeout time.Duration
}

// New creates a Runner. closeTimeout bounds closing a sink after the run
// context has been cancelled.
func New(ws Workspace, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, closeTimeout time.Duration) *Runner {
	return &Runner{
		ws:           ws,
		logger:       logger,
		metrics:      metrics,
		clock:        clock,
		closeTimeout: closeTimeout,
	}
}

// Workspace returns the directories the runner works in.
func (r *Runner) Workspace() Workspace { return r.ws }

// stageRun tracks the progress of one stage call.
type stageRun struct {
	r      *Runner
	report Report
	start  time.Time
	logger *slog.Logger
}

func (r *Runner) begin(stage string) *stageRun {
	logger := r.logger.With("stage", stage)
	logger.Info("stage started")
	return &stageRun{
		r:      r,
		report: Report{Stage: stage},
		start:  r.clock.Now(),
		logger: logger,
	}
}

// succeeded counts a finished item.
func (s *stageRun) succeeded() {
	s.report.Items++
	s.r.metrics.ObserveItem(s.report.Stage, nil)
}

// fail records an item failure; the stage carries on with the next item.
func (s *stageRun) fail(item string, err error) {
	s.record(&domain.ItemError{Stage: s.report.Stage, Item: item, Err: err})
}

// record adds a failure raised by a helper step, keeping the step's name in
// the ItemError. Metrics count it against the running stage.
func (s *stageRun) record(ie *domain.ItemError) {
	s.report.Items++
	s.report.Failed = append(s.report.Failed, ie)
	s.r.metrics.ObserveItem(s.report.Stage, ie)
	s.logger.Error("item failed", "item", ie.Item, "step", ie.Stage, "error", ie.Err)
}

func (s *stageRun) addRecords(n int) {
	s.report.Records += n
	s.r.metrics.RecordsTotal.WithLabelValues(s.report.Stage).Add(float64(n))
}

func (s *stageRun) stop() {
	now := s.r.clock.Now()
	s.report.Duration = now.Sub(s.start)
	s.r.metrics.ObserveStage(s.report.Stage, s.report.Duration, now)
}

// finish closes the run and returns the item failures, if any, as the error.
func (s *stageRun) finish() (Report, error) {
	s.stop()
	s.logger.Info("stage finished",
		"items", s.report.Items,
		"failed", len(s.report.Failed),
		"records", s.report.Records,
		"duration", s.report.Duration,
	)
	return s.report, s.report.Failed.Err()
}

// abort ends the run on a condition that makes the rest of the stage
// pointless. Item failures gathered so far stay in the report.
func (s *stageRun) abort(err error) (Report, error) {
	s.stop()
	s.logger.Error("stage aborted",
		"error", err,
		"items", s.report.Items,
		"failed", len(s.report.Failed),
		"duration", s.report.Duration,
	)
	return s.report, err
}
