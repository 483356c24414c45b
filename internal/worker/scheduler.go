// Package worker runs the periodic scan, deliver and commit cycle.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/plc-filebridge/backend/internal/journal"
	"github.com/plc-filebridge/backend/internal/logging"
	"github.com/plc-filebridge/backend/internal/models"
	"github.com/plc-filebridge/backend/internal/progress"
	"github.com/plc-filebridge/backend/internal/storage"
)

// DefaultInterval is the pause between cycles.
const DefaultInterval = 10 * time.Second

// CycleSummary describes one completed cycle.
type CycleSummary struct {
	CycleID    string
	Tasks      int
	Succeeded  int
	Failed     int
	Watermarks int
	RowsSent   int
	Duration   time.Duration
}

// Scheduler owns the progress store between cycles. Tasks see a read-only
// snapshot; the store is written once, after every task has returned.
type Scheduler struct {
	scanner   *storage.Scanner
	store     *progress.Store
	processor *Processor
	pool      *Pool
	journal   journal.Recorder
	interval  time.Duration
	logger    *slog.Logger
}

// Options configures a Scheduler.
type Options struct {
	Scanner   *storage.Scanner
	Store     *progress.Store
	Processor *Processor
	Pool      *Pool
	Journal   journal.Recorder
	Interval  time.Duration
	Logger    *slog.Logger
}

func NewScheduler(opts Options) *Scheduler {
	s := &Scheduler{
		scanner:   opts.Scanner,
		store:     opts.Store,
		processor: opts.Processor,
		pool:      opts.Pool,
		journal:   opts.Journal,
		interval:  opts.Interval,
		logger:    logging.NewComponentLogger(opts.Logger, "scheduler"),
	}
	if s.pool == nil {
		s.pool = NewPool(DefaultPoolSize)
	}
	if s.journal == nil {
		s.journal = journal.Nop{}
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	return s
}

// Run executes cycles until ctx is cancelled. A cycle in progress is always
// finished, and its progress committed, before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("worker started",
		logging.Duration("interval", s.interval),
		logging.Int("pool_size", s.pool.Size()),
		logging.String("progress_file", s.store.Path()),
	)
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.logger.Error("cycle failed", logging.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("worker stopping")
			return nil
		case <-time.After(s.interval):
		}
	}
}

// RunCycle performs one scan, dispatch, collect and commit pass.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleSummary, error) {
	start := time.Now()
	summary := CycleSummary{CycleID: uuid.NewString()}
	logger := s.logger.With(logging.String(logging.FieldCycleID, summary.CycleID))

	tasks, err := s.scanner.Scan()
	if err != nil {
		return summary, fmt.Errorf("scan: %w", err)
	}
	summary.Tasks = len(tasks)
	if len(tasks) == 0 {
		logger.Debug("no files to process")
		return summary, nil
	}

	snap, err := s.store.Load()
	if err != nil {
		return summary, fmt.Errorf("load progress: %w", err)
	}
	logger.Info("processing files", logging.Int("files", len(tasks)), logging.Int("pool_size", s.pool.Size()))

	// Tasks are never pre-empted; shutdown waits for them.
	taskCtx := context.WithoutCancel(ctx)
	var delta models.Delta
	for res := range s.pool.Run(taskCtx, tasks, func(ctx context.Context, task models.Task) Result {
		return s.runTask(ctx, summary.CycleID, task, snap)
	}) {
		if res.Err != nil {
			summary.Failed++
			logger.Error("file failed; will retry next cycle",
				logging.String(logging.FieldFile, res.Task.FilePath),
				logging.Error(res.Err),
			)
		} else {
			summary.Succeeded++
			delta = append(delta, res.Delta...)
			summary.RowsSent += res.Report.RowsSent()
		}
		if res.Report.RunID != "" {
			if err := s.journal.Record(taskCtx, res.Report); err != nil {
				logger.Warn("journal write failed", logging.Error(err))
			}
		}
	}

	summary.Watermarks = len(delta)
	if err := s.store.Merge(taskCtx, delta); err != nil {
		return summary, fmt.Errorf("commit progress: %w", err)
	}

	summary.Duration = time.Since(start)
	logger.Info("cycle complete",
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("watermarks", summary.Watermarks),
		logging.Int("rows", summary.RowsSent),
		logging.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (s *Scheduler) runTask(ctx context.Context, cycleID string, task models.Task, snap progress.Snapshot) Result {
	report := models.TaskReport{
		RunID:     uuid.NewString(),
		CycleID:   cycleID,
		FilePath:  task.FilePath,
		DeviceID:  task.DeviceID,
		DataID:    task.DataID,
		StartedAt: time.Now(),
	}

	delta, sheets, err := s.processor.Process(ctx, task, snap)
	report.Duration = time.Since(report.StartedAt)
	report.Sheets = sheets
	if err != nil {
		report.Status = models.TaskFailed
		report.Error = err.Error()
		return Result{Report: report, Err: err}
	}
	report.Status = models.TaskSucceeded
	if len(delta) == 0 {
		// idle files are not journaled
		report.RunID = ""
	}
	return Result{Delta: delta, Report: report}
}
