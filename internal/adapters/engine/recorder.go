package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
)

// Recorder owns the in-flight execution record. Node metrics and debug logs
// may be appended from any goroutine; Finalize wins exactly once and every
// later write is dropped.
type Recorder struct {
	store       ports.ExecutionStore
	logger      *slog.Logger
	debug       bool
	checkpoints bool

	mu         sync.Mutex
	record     *domain.WorkflowExecution
	finalized  bool
	onFinalize func(final *domain.WorkflowExecution, runErr error)
	done       chan struct{}
}

func NewRecorder(record *domain.WorkflowExecution, store ports.ExecutionStore, debug, checkpoints bool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:       store,
		logger:      logger.With("component", "recorder", "execution_id", record.ID),
		debug:       debug,
		checkpoints: checkpoints,
		record:      record.Clone(),
		done:        make(chan struct{}),
	}
}

// OnFinalize registers fn to run once, after the terminal record is
// persisted and before Done is closed. Must be called before Finalize.
func (r *Recorder) OnFinalize(fn func(final *domain.WorkflowExecution, runErr error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFinalize = fn
}

// Log appends a timestamped line when the execution runs in debug mode.
func (r *Recorder) Log(format string, args ...interface{}) {
	if !r.debug {
		return
	}

	line := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.record.Logs = append(r.record.Logs, line)
}

func (r *Recorder) RecordNode(entry domain.NodeExecution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.record.Metrics.NodeExecutions = append(r.record.Metrics.NodeExecutions, entry)
}

// Checkpoint persists the logs and node metrics gathered so far.
func (r *Recorder) Checkpoint(ctx context.Context) {
	if !r.checkpoints {
		return
	}

	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return
	}
	snapshot := r.record.Clone()
	r.mu.Unlock()

	_, err := r.store.UpdateOne(context.WithoutCancel(ctx), snapshot.ID, func(stored *domain.WorkflowExecution) error {
		stored.Logs = snapshot.Logs
		stored.Metrics = snapshot.Metrics
		return nil
	})
	if err != nil {
		r.logger.Warn("failed to persist execution checkpoint", "error", err)
	}
}

// Finalize moves the record to its terminal state and persists it. It
// returns the final record and whether this call performed the transition.
func (r *Recorder) Finalize(ctx context.Context, results map[string]interface{}, runErr error) (*domain.WorkflowExecution, bool) {
	r.mu.Lock()
	if r.finalized {
		final := r.record.Clone()
		r.mu.Unlock()
		return final, false
	}

	end := time.Now().UTC()
	r.record.EndTime = &end
	r.record.Status = domain.StatusForError(runErr)
	r.record.Metrics.TotalDuration = end.Sub(r.record.StartTime)
	if runErr != nil {
		r.record.Error = domain.ExecutionErrorMessage(runErr)
		r.record.Results = nil
	} else {
		r.record.Results = results
		if r.record.Results == nil {
			r.record.Results = make(map[string]interface{})
		}
	}
	if r.debug {
		r.record.Logs = append(r.record.Logs, fmt.Sprintf("[%s] Execution finished with status %s", end.Format(time.RFC3339), r.record.Status))
	}
	r.finalized = true
	final := r.record.Clone()
	hook := r.onFinalize
	r.mu.Unlock()

	_, err := r.store.UpdateOne(context.WithoutCancel(ctx), final.ID, func(stored *domain.WorkflowExecution) error {
		*stored = *final.Clone()
		return nil
	})
	if err != nil {
		r.logger.Error("failed to persist final execution record", "status", final.Status, "error", err)
	}

	if hook != nil {
		hook(final.Clone(), runErr)
	}
	close(r.done)
	return final, true
}

func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

func (r *Recorder) Snapshot() *domain.WorkflowExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record.Clone()
}
