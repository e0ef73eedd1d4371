package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatching(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		matches bool
	}{
		{"*", "anything", true},
		{"execution:*", "execution:started", true},
		{"execution:*", "execution:completed", true},
		{"execution:*", "node:completed", false},
		{"node:completed", "node:completed", true},
		{"node:completed", "node:started", false},
	}

	for _, tt := range tests {
		result := patternMatches(tt.pattern, tt.key)
		if result != tt.matches {
			t.Errorf("patternMatches(%q, %q) = %v, want %v", tt.pattern, tt.key, result, tt.matches)
		}
	}
}

func TestManager_DeliversTypedEvents(t *testing.T) {
	m := NewManager(nil)

	var mu sync.Mutex
	var started []string
	var completed []domain.ExecutionStatus
	var nodes []string

	m.OnExecutionStarted(func(e *domain.ExecutionStartedEvent) {
		mu.Lock()
		started = append(started, e.ExecutionID)
		mu.Unlock()
	})
	m.OnExecutionCompleted(func(e *domain.ExecutionCompletedEvent) {
		mu.Lock()
		completed = append(completed, e.Status)
		mu.Unlock()
	})
	m.OnNodeCompleted(func(e *domain.NodeCompletedEvent) {
		mu.Lock()
		nodes = append(nodes, e.NodeID)
		mu.Unlock()
	})

	m.PublishExecutionStarted(&domain.ExecutionStartedEvent{ExecutionID: "e1"})
	m.PublishNodeCompleted(&domain.NodeCompletedEvent{NodeID: "a"})
	m.PublishExecutionCompleted(&domain.ExecutionCompletedEvent{Status: domain.ExecutionSuccess})
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"e1"}, started)
	assert.Equal(t, []string{"a"}, nodes)
	assert.Equal(t, []domain.ExecutionStatus{domain.ExecutionSuccess}, completed)
}

func TestManager_UnsubscribeStopsDelivery(t *testing.T) {
	m := NewManager(nil)
	var calls int32

	unsubscribe := m.OnNodeCompleted(func(*domain.NodeCompletedEvent) {
		atomic.AddInt32(&calls, 1)
	})

	m.PublishNodeCompleted(&domain.NodeCompletedEvent{NodeID: "a"})
	m.Wait()
	unsubscribe()
	m.PublishNodeCompleted(&domain.NodeCompletedEvent{NodeID: "b"})
	m.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestManager_GenericSubscription(t *testing.T) {
	m := NewManager(nil)
	topics := make(chan string, 4)

	id := m.Subscribe("execution:*", func(topic string, _ interface{}) {
		topics <- topic
	})

	m.PublishExecutionStarted(&domain.ExecutionStartedEvent{})
	m.PublishNodeCompleted(&domain.NodeCompletedEvent{})
	m.Wait()

	require.Len(t, topics, 1)
	assert.Equal(t, TopicExecutionStarted, <-topics)

	m.Unsubscribe(id)
	m.PublishExecutionCompleted(&domain.ExecutionCompletedEvent{})
	m.Wait()
	assert.Len(t, topics, 0)
}

func TestManager_HandlerPanicIsContained(t *testing.T) {
	m := NewManager(nil)
	delivered := make(chan struct{}, 1)

	m.OnExecutionStarted(func(*domain.ExecutionStartedEvent) {
		panic("handler bug")
	})
	m.OnExecutionStarted(func(*domain.ExecutionStartedEvent) {
		delivered <- struct{}{}
	})

	m.PublishExecutionStarted(&domain.ExecutionStartedEvent{})

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("healthy handler was not called")
	}
	m.Wait()
}
