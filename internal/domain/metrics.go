package domain

import (
	"sync/atomic"
	"time"
)

type ExecutionMetrics struct {
	ExecutionsStarted   int64 `json:"executions_started"`
	ExecutionsSucceeded int64 `json:"executions_succeeded"`
	ExecutionsFailed    int64 `json:"executions_failed"`
	ExecutionsTimedOut  int64 `json:"executions_timed_out"`
	ExecutionsAborted   int64 `json:"executions_aborted"`

	NodesExecuted  int64 `json:"nodes_executed"`
	NodesSucceeded int64 `json:"nodes_succeeded"`
	NodesFailed    int64 `json:"nodes_failed"`
	NodesPanicked  int64 `json:"nodes_panicked"`

	BatchesDispatched    int64 `json:"batches_dispatched"`
	TotalExecutionTimeNs int64 `json:"total_execution_time_ns"`
	NodeExecutionTimeNs  int64 `json:"node_execution_time_ns"`
}

func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{}
}

func (m *ExecutionMetrics) IncrementExecutionsStarted() {
	atomic.AddInt64(&m.ExecutionsStarted, 1)
}

func (m *ExecutionMetrics) IncrementExecutionsAborted() {
	atomic.AddInt64(&m.ExecutionsAborted, 1)
}

func (m *ExecutionMetrics) IncrementBatchesDispatched() {
	atomic.AddInt64(&m.BatchesDispatched, 1)
}

func (m *ExecutionMetrics) IncrementNodesPanicked() {
	atomic.AddInt64(&m.NodesPanicked, 1)
}

// RecordExecution counts a finalized run by its terminal status.
func (m *ExecutionMetrics) RecordExecution(status ExecutionStatus, duration time.Duration) {
	switch status {
	case ExecutionSuccess:
		atomic.AddInt64(&m.ExecutionsSucceeded, 1)
	case ExecutionFailed:
		atomic.AddInt64(&m.ExecutionsFailed, 1)
	case ExecutionTimeout:
		atomic.AddInt64(&m.ExecutionsTimedOut, 1)
	}
	atomic.AddInt64(&m.TotalExecutionTimeNs, duration.Nanoseconds())
}

func (m *ExecutionMetrics) RecordNode(status NodeStatus, duration time.Duration) {
	atomic.AddInt64(&m.NodesExecuted, 1)
	if status == NodeSuccess {
		atomic.AddInt64(&m.NodesSucceeded, 1)
	} else {
		atomic.AddInt64(&m.NodesFailed, 1)
	}
	atomic.AddInt64(&m.NodeExecutionTimeNs, duration.Nanoseconds())
}

// Snapshot returns a consistent-enough copy for reporting.
func (m *ExecutionMetrics) Snapshot() ExecutionMetrics {
	return ExecutionMetrics{
		ExecutionsStarted:    atomic.LoadInt64(&m.ExecutionsStarted),
		ExecutionsSucceeded:  atomic.LoadInt64(&m.ExecutionsSucceeded),
		ExecutionsFailed:     atomic.LoadInt64(&m.ExecutionsFailed),
		ExecutionsTimedOut:   atomic.LoadInt64(&m.ExecutionsTimedOut),
		ExecutionsAborted:    atomic.LoadInt64(&m.ExecutionsAborted),
		NodesExecuted:        atomic.LoadInt64(&m.NodesExecuted),
		NodesSucceeded:       atomic.LoadInt64(&m.NodesSucceeded),
		NodesFailed:          atomic.LoadInt64(&m.NodesFailed),
		NodesPanicked:        atomic.LoadInt64(&m.NodesPanicked),
		BatchesDispatched:    atomic.LoadInt64(&m.BatchesDispatched),
		TotalExecutionTimeNs: atomic.LoadInt64(&m.TotalExecutionTimeNs),
		NodeExecutionTimeNs:  atomic.LoadInt64(&m.NodeExecutionTimeNs),
	}
}

func (m *ExecutionMetrics) AverageNodeDuration() time.Duration {
	count := atomic.LoadInt64(&m.NodesExecuted)
	if count == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&m.NodeExecutionTimeNs) / count)
}
