package simd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/evaluation"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/lp"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/metrics"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/logger"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
)

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store     *RunStore
	notifier  *Notifier
	archive   *Archive
	telemetry *metrics.Telemetry
	solver    lp.Solver

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
)

func NewRunExecutor(store *RunStore) *RunExecutor {
	return &RunExecutor{
		store:   store,
		cancels: make(map[string]context.CancelFunc),
	}
}

// SetNotifier enables completion callbacks
func (e *RunExecutor) SetNotifier(n *Notifier) { e.notifier = n }

// SetArchive persists finished runs
func (e *RunExecutor) SetArchive(a *Archive) { e.archive = a }

// SetTelemetry enables Prometheus metrics for every run
func (e *RunExecutor) SetTelemetry(t *metrics.Telemetry) { e.telemetry = t }

// SetSolver replaces the LP solver used by new runs; nil selects the default
func (e *RunExecutor) SetSolver(s lp.Solver) { e.solver = s }

// Start begins executing a run asynchronously.
// Returns the updated run state (running) or an error.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	switch {
	case rec.Run.Status == models.RunStatusRunning:
		return rec, nil
	case rec.Run.Status.IsTerminal():
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	ev, err := evaluation.New(rec.Config, e.solver)
	if err != nil {
		return nil, err
	}
	ev.SetTelemetry(e.telemetry)
	ev.SetProgress(rec.Progress)
	ev.SetLogger(logger.Component("evaluator").With("run_id", runID))

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if _, running := e.cancels[runID]; running {
		e.mu.Unlock()
		cancel()
		rec, _ = e.store.Get(runID)
		return rec, nil
	}
	e.cancels[runID] = cancel
	e.mu.Unlock()

	updated, err := e.store.SetStatus(runID, models.RunStatusRunning, "")
	if err != nil {
		e.cleanup(runID)
		return nil, err
	}

	e.telemetry.RunStarted()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runEvaluation(ctx, runID, ev)
	}()

	logger.Info("run started", "run_id", runID, "policy", ev.Policy(), "experiments", ev.Experiments())
	return updated, nil
}

// Stop requests cancellation for a run and marks it cancelled
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	e.mu.Lock()
	cancel, running := e.cancels[runID]
	e.mu.Unlock()

	updated, err := e.store.SetStatus(runID, models.RunStatusCancelled, "")
	if err != nil {
		return nil, err
	}
	if running {
		// the worker goroutine finishes the bookkeeping
		cancel()
	} else {
		e.finish(updated, false)
	}

	logger.Info("run cancelled", "run_id", runID)
	return updated, nil
}

// Wait blocks until every started run and pending notification finished
func (e *RunExecutor) Wait() {
	e.wg.Wait()
	if e.notifier != nil {
		e.notifier.Wait()
	}
}

// Shutdown cancels every running run and waits for them
func (e *RunExecutor) Shutdown() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.cancels))
	for id := range e.cancels {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if _, err := e.Stop(id); err != nil && !errors.Is(err, ErrRunTerminal) {
			logger.Warn("failed to stop run on shutdown", "run_id", id, "error", err)
		}
	}
	e.Wait()
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) runEvaluation(ctx context.Context, runID string, ev *evaluation.Evaluator) {
	defer e.cleanup(runID)

	report, err := ev.Run(ctx)

	var (
		rec    *RunRecord
		setErr error
	)
	switch {
	case err == nil:
		rec, setErr = e.store.Complete(runID, report)
		if setErr == nil {
			logger.Info("run completed", "run_id", runID,
				"expected_cost", report.Summary.ExpectedCost,
				"fallback_rate", report.Summary.FallbackRate(),
				"duration", report.Duration)
		}
	case ctx.Err() != nil:
		logger.Info("evaluation cancelled", "run_id", runID)
		rec, setErr = e.store.SetStatus(runID, models.RunStatusCancelled, "")
	default:
		logger.Error("evaluation failed", "run_id", runID, "error", err)
		rec, setErr = e.store.SetStatus(runID, models.RunStatusFailed, err.Error())
	}

	if setErr != nil {
		// Stop already moved the run to a terminal state
		if !errors.Is(setErr, ErrRunTerminal) {
			logger.Error("failed to set final status", "run_id", runID, "error", setErr)
		}
		var ok bool
		if rec, ok = e.store.Get(runID); !ok {
			return
		}
	}

	e.finish(rec, true)
}

// finish archives and announces a run that reached a terminal state
func (e *RunExecutor) finish(rec *RunRecord, started bool) {
	if started {
		e.telemetry.RunFinished(string(rec.Run.Status))
	} else {
		e.telemetry.CountRun(string(rec.Run.Status))
	}

	if e.archive != nil {
		var ledger *decision.Ledger
		if rec.Report != nil {
			ledger = rec.Report.Ledger
		}
		if err := e.archive.Save(context.Background(), rec.Run, ledger); err != nil {
			logger.Error("failed to archive run", "run_id", rec.Run.ID, "error", err)
		}
	}
	e.notifier.Notify(rec)
}
