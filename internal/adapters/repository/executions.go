package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
	"github.com/eleven-am/weft/internal/xjson"
)

// ExecutionRepository stores execution records and a per-workflow index
// whose key order is newest first.
type ExecutionRepository struct {
	storage ports.StoragePort
	logger  *slog.Logger
}

var _ ports.ExecutionStore = (*ExecutionRepository)(nil)

func NewExecutionRepository(storage ports.StoragePort, logger *slog.Logger) *ExecutionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionRepository{
		storage: storage,
		logger:  logger.With("component", "execution-repository"),
	}
}

func (r *ExecutionRepository) Insert(ctx context.Context, execution *domain.WorkflowExecution) error {
	if execution == nil || execution.ID == "" {
		return fmt.Errorf("insert execution: %w", domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := xjson.Marshal(execution)
	if err != nil {
		return fmt.Errorf("marshal execution %s: %w", execution.ID, err)
	}

	indexKey := domain.ExecutionWorkflowIndexKey(execution.WorkflowID, execution.StartTime, execution.ID)
	return r.storage.BatchWrite([]ports.WriteOp{
		{Type: ports.OpPut, Key: domain.ExecutionKey(execution.ID), Value: data, Version: 1},
		{Type: ports.OpPut, Key: indexKey, Value: []byte(execution.ID)},
	})
}

func (r *ExecutionRepository) FindOne(ctx context.Context, id string) (*domain.WorkflowExecution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := domain.ExecutionKey(id)
	data, _, exists, err := r.storage.Get(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("execution %s: %w", id, domain.ErrNotFound)
	}
	return decodeExecution(key, data)
}

// Find pages through executions sorted by start time, newest first. A
// non-positive Limit returns everything after Offset.
func (r *ExecutionRepository) Find(ctx context.Context, filter domain.ExecutionFilter) ([]*domain.WorkflowExecution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	if filter.WorkflowID == "" {
		return r.findAll(offset, filter.Limit)
	}

	keys, err := r.storage.ListKeysByPrefix(domain.ExecutionWorkflowIndexPrefix(filter.WorkflowID), offset, filter.Limit)
	if err != nil {
		return nil, err
	}

	executions := make([]*domain.WorkflowExecution, 0, len(keys))
	for _, key := range keys {
		id := key[strings.LastIndex(key, ":")+1:]
		execution, err := r.FindOne(ctx, id)
		if domain.IsNotFound(err) {
			r.logger.Warn("dangling execution index entry", "execution_id", id, "workflow_id", filter.WorkflowID)
			continue
		}
		if err != nil {
			return nil, err
		}
		executions = append(executions, execution)
	}
	return executions, nil
}

func (r *ExecutionRepository) findAll(offset, limit int) ([]*domain.WorkflowExecution, error) {
	items, err := r.storage.ListByPrefix(domain.ExecutionRecordPrefix)
	if err != nil {
		return nil, err
	}

	executions := make([]*domain.WorkflowExecution, 0, len(items))
	for _, item := range items {
		execution, err := decodeExecution(item.Key, item.Value)
		if err != nil {
			return nil, err
		}
		executions = append(executions, execution)
	}

	sort.SliceStable(executions, func(i, j int) bool {
		return executions[i].StartTime.After(executions[j].StartTime)
	})

	if offset >= len(executions) {
		return []*domain.WorkflowExecution{}, nil
	}
	executions = executions[offset:]
	if limit > 0 && limit < len(executions) {
		executions = executions[:limit]
	}
	return executions, nil
}

// UpdateOne applies fn to the stored record. Records that are already
// terminal are left untouched and fn is not called.
func (r *ExecutionRepository) UpdateOne(ctx context.Context, id string, fn func(*domain.WorkflowExecution) error) (*domain.WorkflowExecution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated *domain.WorkflowExecution
	key := domain.ExecutionKey(id)

	err := r.storage.RunInTransaction(func(tx ports.Transaction) error {
		data, version, exists, err := tx.Get(key)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("execution %s: %w", id, domain.ErrNotFound)
		}

		execution, err := decodeExecution(key, data)
		if err != nil {
			return err
		}
		if execution.Status.IsTerminal() {
			updated = execution
			return nil
		}

		startTime := execution.StartTime
		if err := fn(execution); err != nil {
			return err
		}
		execution.ID = id
		execution.StartTime = startTime

		encoded, err := xjson.Marshal(execution)
		if err != nil {
			return fmt.Errorf("marshal execution %s: %w", id, err)
		}
		if err := tx.Put(key, encoded, version+1); err != nil {
			return err
		}
		updated = execution
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *ExecutionRepository) DeleteOne(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	deleted := false
	key := domain.ExecutionKey(id)

	err := r.storage.RunInTransaction(func(tx ports.Transaction) error {
		data, _, exists, err := tx.Get(key)
		if err != nil || !exists {
			return err
		}
		execution, err := decodeExecution(key, data)
		if err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		if err := tx.Delete(domain.ExecutionWorkflowIndexKey(execution.WorkflowID, execution.StartTime, id)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (r *ExecutionRepository) Count(ctx context.Context, filter domain.ExecutionFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if filter.WorkflowID == "" {
		return r.storage.CountPrefix(domain.ExecutionRecordPrefix)
	}
	return r.storage.CountPrefix(domain.ExecutionWorkflowIndexPrefix(filter.WorkflowID))
}

func decodeExecution(key string, data []byte) (*domain.WorkflowExecution, error) {
	var execution domain.WorkflowExecution
	if err := xjson.Unmarshal(data, &execution); err != nil {
		return nil, domain.NewCorruptedError(key, err)
	}
	return &execution, nil
}
