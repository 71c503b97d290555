package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/LilVoxy/delivery_analytics/ETL/config"
	"github.com/LilVoxy/delivery_analytics/ETL/extractors"
	"github.com/LilVoxy/delivery_analytics/ETL/load"
	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/pipeline"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

var (
	// ErrRunInProgress is returned when this process is already running a batch
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrRunTimeout means the run exceeded run_timeout and nothing was published
	ErrRunTimeout = errors.New("run timed out")
)

// Run events pushed to a Notifier
const (
	EventRunStarted  = "run_started"
	EventRunFinished = "run_finished"
)

// Notifier receives run lifecycle events, e.g. the live websocket feed
type Notifier interface {
	Notify(event string, run *models.RunSummary)
}

// logUpdateTimeout bounds the run log write that follows a run, which may
// happen after the run context expired
const logUpdateTimeout = 10 * time.Second

// ETLRunner executes batches from the input directory and records them in
// the run log
type ETLRunner struct {
	config    config.ETLConfig
	logger    *utils.ETLLogger
	extractor *extractors.Extractor
	pipeline  *pipeline.Pipeline
	runLog    models.ETLLogRepository

	notifier Notifier
	running  sync.Mutex
}

// NewETLRunner wires the extractor and pipeline over the given store
func NewETLRunner(cfg config.ETLConfig, loader load.Loader, runLog models.ETLLogRepository, logger *utils.ETLLogger) (*ETLRunner, error) {
	p, err := pipeline.New(cfg, loader, logger)
	if err != nil {
		return nil, err
	}
	return &ETLRunner{
		config:    cfg,
		logger:    logger,
		extractor: extractors.NewExtractor(logger),
		pipeline:  p,
		runLog:    runLog,
	}, nil
}

// SetNotifier attaches a listener for run events; call before the first run
func (r *ETLRunner) SetNotifier(n Notifier) {
	r.notifier = n
}

// ExecuteETL runs one batch to completion and returns its summary. The
// summary is also returned on failure, filled as far as the run got.
func (r *ETLRunner) ExecuteETL(ctx context.Context) (*models.RunSummary, error) {
	if !r.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.running.Unlock()

	return r.execute(ctx, uuid.NewString())
}

// Trigger starts a run in the background and returns its id. The run
// outlives ctx's cancellation, so a request context can be passed.
func (r *ETLRunner) Trigger(ctx context.Context) (string, error) {
	if !r.running.TryLock() {
		return "", ErrRunInProgress
	}

	runID := uuid.NewString()
	go func() {
		defer r.running.Unlock()
		if _, err := r.execute(context.WithoutCancel(ctx), runID); err != nil {
			r.logger.Error("triggered run failed", "run_id", runID, "error", err)
		}
	}()
	return runID, nil
}

func (r *ETLRunner) execute(ctx context.Context, runID string) (*models.RunSummary, error) {
	startTime := time.Now()
	logger := r.logger.With("run_id", runID)
	logger.LogETLStart(r.config.Input.Dir)

	ctx, cancel := context.WithTimeout(ctx, r.config.RunTimeout)
	defer cancel()

	logID, err := r.runLog.CreateLogEntry(ctx, runID, startTime)
	if err != nil {
		logger.Error("run log unavailable", "error", err)
		return nil, fmt.Errorf("create run log entry: %w", err)
	}
	r.notify(EventRunStarted, models.NewRunSummary(runID, startTime))

	summary, err := r.runBatch(ctx, runID, startTime)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrRunTimeout, r.config.RunTimeout, err)
		summary.ErrorMessage = err.Error()
	}

	logCtx, logCancel := context.WithTimeout(context.WithoutCancel(ctx), logUpdateTimeout)
	defer logCancel()
	if err != nil {
		if logErr := r.runLog.UpdateLogEntryFailure(logCtx, logID, summary.EndTime, summary.ErrorMessage); logErr != nil {
			logger.Error("failed to record run failure", "error", logErr)
		}
	} else if logErr := r.runLog.UpdateLogEntrySuccess(logCtx, logID, summary); logErr != nil {
		logger.Error("failed to record run success", "error", logErr)
	}

	r.notify(EventRunFinished, summary)
	return summary, err
}

func (r *ETLRunner) runBatch(ctx context.Context, runID string, startTime time.Time) (*models.RunSummary, error) {
	raws, err := r.extractor.Extract(ctx, r.config.Input.Dir)
	if err != nil {
		summary := models.NewRunSummary(runID, startTime)
		summary.EndTime = time.Now()
		summary.Status = models.RunStatusFailed
		summary.ErrorMessage = err.Error()
		return summary, fmt.Errorf("extract: %w", err)
	}
	return r.pipeline.Run(ctx, runID, raws)
}

func (r *ETLRunner) notify(event string, run *models.RunSummary) {
	if r.notifier != nil {
		r.notifier.Notify(event, run)
	}
}

// StartScheduler runs a batch every run_interval until ctx is done. A tick
// that fires while a run is still going is skipped.
func (r *ETLRunner) StartScheduler(ctx context.Context) error {
	scheduler := gocron.NewScheduler(time.UTC)

	_, err := scheduler.Every(r.config.RunInterval).SingletonMode().Do(func() {
		if _, err := r.ExecuteETL(ctx); err != nil {
			r.logger.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule runs: %w", err)
	}

	r.logger.Info("scheduler started", "interval", r.config.RunInterval)
	scheduler.StartAsync()

	<-ctx.Done()
	scheduler.Stop()
	r.logger.Info("scheduler stopped")
	return nil
}

// RecentRuns lists the runs started in the last days
func (r *ETLRunner) RecentRuns(ctx context.Context, days int) ([]models.ETLRunLog, error) {
	return r.runLog.GetETLRunStats(ctx, days)
}

// State summarizes the run history
func (r *ETLRunner) State(ctx context.Context) (*models.ETLStateMonitor, error) {
	return r.runLog.GetETLStateMonitor(ctx)
}
