package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func runningRecord() *domain.WorkflowExecution {
	return &domain.WorkflowExecution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		UserID:     "user-1",
		StartTime:  time.Now().UTC().Add(-time.Second),
		Status:     domain.ExecutionRunning,
	}
}

// applyUpdate runs the update callback against a fresh stored record and
// captures what it produced.
func applyUpdate(captured *domain.WorkflowExecution) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		fn := args.Get(2).(func(*domain.WorkflowExecution) error)
		stored := runningRecord()
		_ = fn(stored)
		*captured = *stored
	}
}

func TestRecorder_FinalizeSuccess(t *testing.T) {
	store := mocks.NewMockExecutionStore(t)
	var persisted domain.WorkflowExecution
	store.On("UpdateOne", mock.Anything, "exec-1", mock.Anything).
		Run(applyUpdate(&persisted)).
		Return(&domain.WorkflowExecution{}, nil).
		Once()

	rec := NewRecorder(runningRecord(), store, false, true, nil)
	rec.RecordNode(domain.NodeExecution{NodeID: "A", Status: domain.NodeSuccess})

	final, won := rec.Finalize(context.Background(), map[string]interface{}{"A": 1}, nil)
	require.True(t, won)
	assert.Equal(t, domain.ExecutionSuccess, final.Status)
	assert.NotNil(t, final.EndTime)
	assert.Greater(t, final.Metrics.TotalDuration, time.Duration(0))
	assert.Equal(t, map[string]interface{}{"A": 1}, final.Results)
	assert.Empty(t, final.Error)
	assert.Empty(t, final.Logs)

	assert.Equal(t, domain.ExecutionSuccess, persisted.Status)
	assert.Len(t, persisted.Metrics.NodeExecutions, 1)

	select {
	case <-rec.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestRecorder_FinalizeOnlyOnce(t *testing.T) {
	store := mocks.NewMockExecutionStore(t)
	store.On("UpdateOne", mock.Anything, "exec-1", mock.Anything).
		Return(&domain.WorkflowExecution{}, nil).
		Once()

	rec := NewRecorder(runningRecord(), store, false, true, nil)

	first, won := rec.Finalize(context.Background(), nil, domain.ErrExecutionAborted)
	require.True(t, won)
	assert.Equal(t, domain.ExecutionTimeout, first.Status)
	assert.Equal(t, domain.AbortedMessage, first.Error)
	assert.Nil(t, first.Results)

	second, won := rec.Finalize(context.Background(), map[string]interface{}{"A": 1}, nil)
	assert.False(t, won)
	assert.Equal(t, domain.ExecutionTimeout, second.Status)
	assert.Equal(t, domain.AbortedMessage, second.Error)

	rec.RecordNode(domain.NodeExecution{NodeID: "late"})
	rec.Checkpoint(context.Background())
	assert.Empty(t, rec.Snapshot().Metrics.NodeExecutions)
}

func TestRecorder_EmptyResultsAreNotNil(t *testing.T) {
	store := mocks.NewMockExecutionStore(t)
	store.On("UpdateOne", mock.Anything, "exec-1", mock.Anything).Return(&domain.WorkflowExecution{}, nil)

	rec := NewRecorder(runningRecord(), store, false, false, nil)
	final, _ := rec.Finalize(context.Background(), nil, nil)
	assert.NotNil(t, final.Results)
	assert.Empty(t, final.Results)
}

func TestRecorder_NodeFailureMessage(t *testing.T) {
	store := mocks.NewMockExecutionStore(t)
	store.On("UpdateOne", mock.Anything, "exec-1", mock.Anything).Return(&domain.WorkflowExecution{}, nil)

	rec := NewRecorder(runningRecord(), store, false, false, nil)
	final, _ := rec.Finalize(context.Background(), nil, domain.NewNodeFailedError("B", "boom", nil))

	assert.Equal(t, domain.ExecutionFailed, final.Status)
	assert.Equal(t, "Node B failed: boom", final.Error)
}

func TestRecorder_DebugLogs(t *testing.T) {
	store := mocks.NewMockExecutionStore(t)
	store.On("UpdateOne", mock.Anything, "exec-1", mock.Anything).Return(&domain.WorkflowExecution{}, nil)

	rec := NewRecorder(runningRecord(), store, true, false, nil)
	rec.Log("Executing batch %d: %s", 1, "A")

	final, _ := rec.Finalize(context.Background(), nil, nil)
	require.Len(t, final.Logs, 2)
	assert.True(t, strings.HasPrefix(final.Logs[0], "["))
	assert.Contains(t, final.Logs[0], "] Executing batch 1: A")
	assert.Contains(t, final.Logs[1], "Execution finished with status success")
}

func TestRecorder_LogIgnoredWithoutDebug(t *testing.T) {
	rec := NewRecorder(runningRecord(), mocks.NewMockExecutionStore(t), false, false, nil)
	rec.Log("hidden")
	assert.Empty(t, rec.Snapshot().Logs)
}

func TestRecorder_Checkpoint(t *testing.T) {
	store := mocks.NewMockExecutionStore(t)
	var persisted domain.WorkflowExecution
	store.On("UpdateOne", mock.Anything, "exec-1", mock.Anything).
		Run(applyUpdate(&persisted)).
		Return(&domain.WorkflowExecution{}, nil).
		Once()

	rec := NewRecorder(runningRecord(), store, true, true, nil)
	rec.Log("step")
	rec.RecordNode(domain.NodeExecution{NodeID: "A", Status: domain.NodeSuccess})
	rec.Checkpoint(context.Background())

	assert.Equal(t, domain.ExecutionRunning, persisted.Status)
	assert.Len(t, persisted.Logs, 1)
	assert.Len(t, persisted.Metrics.NodeExecutions, 1)
}

func TestRecorder_CheckpointDisabled(t *testing.T) {
	store := mocks.NewMockExecutionStore(t)

	rec := NewRecorder(runningRecord(), store, false, false, nil)
	rec.RecordNode(domain.NodeExecution{NodeID: "A"})
	rec.Checkpoint(context.Background())

	store.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecorder_PersistFailureStillFinalizes(t *testing.T) {
	store := mocks.NewMockExecutionStore(t)
	store.On("UpdateOne", mock.Anything, "exec-1", mock.Anything).Return(nil, errors.New("disk full"))

	rec := NewRecorder(runningRecord(), store, false, true, nil)
	rec.Checkpoint(context.Background())

	final, won := rec.Finalize(context.Background(), nil, nil)
	assert.True(t, won)
	assert.Equal(t, domain.ExecutionSuccess, final.Status)
	<-rec.Done()
}

func TestRecorder_ConcurrentRecordNode(t *testing.T) {
	rec := NewRecorder(runningRecord(), mocks.NewMockExecutionStore(t), true, false, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.RecordNode(domain.NodeExecution{NodeID: "n"})
			rec.Log("node done")
		}()
	}
	wg.Wait()

	snap := rec.Snapshot()
	assert.Len(t, snap.Metrics.NodeExecutions, 50)
	assert.Len(t, snap.Logs, 50)
}

func TestRecorder_OnFinalizeRunsOnceBeforeDone(t *testing.T) {
	store := mocks.NewMockExecutionStore(t)
	store.On("UpdateOne", mock.Anything, "exec-1", mock.Anything).Return(&domain.WorkflowExecution{}, nil).Once()

	rec := NewRecorder(runningRecord(), store, false, true, nil)

	calls := 0
	rec.OnFinalize(func(final *domain.WorkflowExecution, runErr error) {
		calls++
		assert.ErrorIs(t, runErr, domain.ErrExecutionTimeout)
		assert.Equal(t, domain.ExecutionTimeout, final.Status)
		select {
		case <-rec.Done():
			t.Error("done closed before the hook ran")
		default:
		}
	})

	rec.Finalize(context.Background(), nil, domain.ErrExecutionTimeout)
	rec.Finalize(context.Background(), nil, nil)
	assert.Equal(t, 1, calls)
}
