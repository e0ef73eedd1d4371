package ports

import (
	"context"

	"github.com/eleven-am/weft/internal/domain"
)

// StoragePort is the key/value layer the repositories are built on.
type StoragePort interface {
	Get(key string) (value []byte, version int64, exists bool, err error)
	Put(key string, value []byte, version int64) error
	Delete(key string) error
	Exists(key string) (bool, error)

	BatchWrite(ops []WriteOp) error

	ListByPrefix(prefix string) ([]KeyValueVersion, error)
	ListKeysByPrefix(prefix string, offset, limit int) ([]string, error)
	CountPrefix(prefix string) (count int, err error)

	RunInTransaction(fn func(tx Transaction) error) error

	Close() error
}

type Transaction interface {
	Get(key string) (value []byte, version int64, exists bool, err error)
	Put(key string, value []byte, version int64) error
	Delete(key string) error
	Exists(key string) (bool, error)
}

type WriteOp struct {
	Type    OpType
	Key     string
	Value   []byte
	Version int64
}

type KeyValueVersion struct {
	Key     string
	Value   []byte
	Version int64
}

type OpType int

const (
	OpPut OpType = iota
	OpDelete
)

type WorkflowStore interface {
	Insert(ctx context.Context, workflow *domain.Workflow) error
	FindOne(ctx context.Context, id string) (*domain.Workflow, error)
	Find(ctx context.Context, filter domain.WorkflowFilter) ([]*domain.Workflow, error)
	// UpdateOne loads the workflow, applies fn and stores the result
	// atomically. fn may return an error to abort the update.
	UpdateOne(ctx context.Context, id string, fn func(*domain.Workflow) error) (*domain.Workflow, error)
	DeleteOne(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, filter domain.WorkflowFilter) (int, error)
}

type ExecutionStore interface {
	Insert(ctx context.Context, execution *domain.WorkflowExecution) error
	FindOne(ctx context.Context, id string) (*domain.WorkflowExecution, error)
	Find(ctx context.Context, filter domain.ExecutionFilter) ([]*domain.WorkflowExecution, error)
	UpdateOne(ctx context.Context, id string, fn func(*domain.WorkflowExecution) error) (*domain.WorkflowExecution, error)
	DeleteOne(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, filter domain.ExecutionFilter) (int, error)
}
