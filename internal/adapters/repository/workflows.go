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

// WorkflowRepository stores workflow definitions under workflow:def:<id>
// with a per-user index under workflow:user:<user>:<id>.
type WorkflowRepository struct {
	storage ports.StoragePort
	logger  *slog.Logger
}

var _ ports.WorkflowStore = (*WorkflowRepository)(nil)

func NewWorkflowRepository(storage ports.StoragePort, logger *slog.Logger) *WorkflowRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowRepository{
		storage: storage,
		logger:  logger.With("component", "workflow-repository"),
	}
}

func (r *WorkflowRepository) Insert(ctx context.Context, workflow *domain.Workflow) error {
	if workflow == nil || workflow.ID == "" {
		return fmt.Errorf("insert workflow: %w", domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := xjson.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("marshal workflow %s: %w", workflow.ID, err)
	}

	err = r.storage.RunInTransaction(func(tx ports.Transaction) error {
		exists, err := tx.Exists(domain.WorkflowKey(workflow.ID))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("workflow %s already exists: %w", workflow.ID, domain.ErrInvalidInput)
		}
		if err := tx.Put(domain.WorkflowKey(workflow.ID), data, workflow.Version); err != nil {
			return err
		}
		return tx.Put(domain.WorkflowUserIndexKey(workflow.UserID, workflow.ID), []byte(workflow.ID), 0)
	})
	if err != nil {
		return err
	}

	r.logger.Debug("workflow stored", "workflow_id", workflow.ID, "user_id", workflow.UserID)
	return nil
}

func (r *WorkflowRepository) FindOne(ctx context.Context, id string) (*domain.Workflow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := domain.WorkflowKey(id)
	data, _, exists, err := r.storage.Get(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
	}

	return decodeWorkflow(key, data)
}

// Find returns the user's workflows, or every workflow when UserID is empty,
// most recently updated first.
func (r *WorkflowRepository) Find(ctx context.Context, filter domain.WorkflowFilter) ([]*domain.Workflow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var workflows []*domain.Workflow
	if filter.UserID == "" {
		items, err := r.storage.ListByPrefix(domain.WorkflowDefPrefix)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			wf, err := decodeWorkflow(item.Key, item.Value)
			if err != nil {
				return nil, err
			}
			workflows = append(workflows, wf)
		}
	} else {
		items, err := r.storage.ListByPrefix(domain.WorkflowUserIndexPrefix(filter.UserID))
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			id := strings.TrimPrefix(item.Key, domain.WorkflowUserIndexPrefix(filter.UserID))
			wf, err := r.FindOne(ctx, id)
			if domain.IsNotFound(err) {
				r.logger.Warn("dangling workflow index entry", "workflow_id", id, "user_id", filter.UserID)
				continue
			}
			if err != nil {
				return nil, err
			}
			workflows = append(workflows, wf)
		}
	}

	sort.SliceStable(workflows, func(i, j int) bool {
		return workflows[i].UpdatedAt.After(workflows[j].UpdatedAt)
	})
	return workflows, nil
}

func (r *WorkflowRepository) UpdateOne(ctx context.Context, id string, fn func(*domain.Workflow) error) (*domain.Workflow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated *domain.Workflow
	key := domain.WorkflowKey(id)

	err := r.storage.RunInTransaction(func(tx ports.Transaction) error {
		data, _, exists, err := tx.Get(key)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
		}

		wf, err := decodeWorkflow(key, data)
		if err != nil {
			return err
		}
		previousUser := wf.UserID

		if err := fn(wf); err != nil {
			return err
		}
		wf.ID = id

		encoded, err := xjson.Marshal(wf)
		if err != nil {
			return fmt.Errorf("marshal workflow %s: %w", id, err)
		}
		if err := tx.Put(key, encoded, wf.Version); err != nil {
			return err
		}
		if previousUser != wf.UserID {
			if err := tx.Delete(domain.WorkflowUserIndexKey(previousUser, id)); err != nil {
				return err
			}
			if err := tx.Put(domain.WorkflowUserIndexKey(wf.UserID, id), []byte(id), 0); err != nil {
				return err
			}
		}

		updated = wf
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *WorkflowRepository) DeleteOne(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	deleted := false
	key := domain.WorkflowKey(id)

	err := r.storage.RunInTransaction(func(tx ports.Transaction) error {
		data, _, exists, err := tx.Get(key)
		if err != nil || !exists {
			return err
		}

		wf, err := decodeWorkflow(key, data)
		if err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		if err := tx.Delete(domain.WorkflowUserIndexKey(wf.UserID, id)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if deleted {
		r.logger.Debug("workflow deleted", "workflow_id", id)
	}
	return deleted, nil
}

func (r *WorkflowRepository) Count(ctx context.Context, filter domain.WorkflowFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if filter.UserID == "" {
		return r.storage.CountPrefix(domain.WorkflowDefPrefix)
	}
	return r.storage.CountPrefix(domain.WorkflowUserIndexPrefix(filter.UserID))
}

func decodeWorkflow(key string, data []byte) (*domain.Workflow, error) {
	var wf domain.Workflow
	if err := xjson.Unmarshal(data, &wf); err != nil {
		return nil, domain.NewCorruptedError(key, err)
	}
	return &wf, nil
}
