package workflow

import (
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/eleven-am/weft/internal/adapters/repository"
	"github.com/eleven-am/weft/internal/adapters/storage"
	"github.com/stretchr/testify/require"
)

// NewInMemoryStorage opens an in-memory badger store closed on test cleanup.
func NewInMemoryStorage(t *testing.T) *storage.AppStorage {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)

	s := storage.NewAppStorage(db, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type Stores struct {
	Storage    *storage.AppStorage
	Workflows  *repository.WorkflowRepository
	Executions *repository.ExecutionRepository
}

func NewStores(t *testing.T) *Stores {
	t.Helper()

	s := NewInMemoryStorage(t)
	return &Stores{
		Storage:    s,
		Workflows:  repository.NewWorkflowRepository(s, nil),
		Executions: repository.NewExecutionRepository(s, nil),
	}
}
