package mocks

import (
	"context"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
	"github.com/stretchr/testify/mock"
)

// MockExecutionStore is a testify mock of ports.ExecutionStore.
type MockExecutionStore struct {
	mock.Mock
}

var _ ports.ExecutionStore = (*MockExecutionStore)(nil)

// NewMockExecutionStore registers AssertExpectations on test cleanup.
func NewMockExecutionStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockExecutionStore {
	m := &MockExecutionStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockExecutionStore) Insert(ctx context.Context, execution *domain.WorkflowExecution) error {
	ret := m.Called(ctx, execution)
	return ret.Error(0)
}

func (m *MockExecutionStore) FindOne(ctx context.Context, id string) (*domain.WorkflowExecution, error) {
	ret := m.Called(ctx, id)
	var r0 *domain.WorkflowExecution
	if v := ret.Get(0); v != nil {
		r0 = v.(*domain.WorkflowExecution)
	}
	return r0, ret.Error(1)
}

func (m *MockExecutionStore) Find(ctx context.Context, filter domain.ExecutionFilter) ([]*domain.WorkflowExecution, error) {
	ret := m.Called(ctx, filter)
	var r0 []*domain.WorkflowExecution
	if v := ret.Get(0); v != nil {
		r0 = v.([]*domain.WorkflowExecution)
	}
	return r0, ret.Error(1)
}

func (m *MockExecutionStore) UpdateOne(ctx context.Context, id string, fn func(*domain.WorkflowExecution) error) (*domain.WorkflowExecution, error) {
	ret := m.Called(ctx, id, fn)
	var r0 *domain.WorkflowExecution
	if v := ret.Get(0); v != nil {
		r0 = v.(*domain.WorkflowExecution)
	}
	return r0, ret.Error(1)
}

func (m *MockExecutionStore) DeleteOne(ctx context.Context, id string) (bool, error) {
	ret := m.Called(ctx, id)
	return ret.Bool(0), ret.Error(1)
}

func (m *MockExecutionStore) Count(ctx context.Context, filter domain.ExecutionFilter) (int, error) {
	ret := m.Called(ctx, filter)
	return ret.Int(0), ret.Error(1)
}
