package events

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
	"github.com/google/uuid"
)

const (
	TopicExecutionStarted   = "execution:started"
	TopicExecutionCompleted = "execution:completed"
	TopicNodeCompleted      = "node:completed"
)

// Manager fans lifecycle events out to registered handlers. Each handler
// runs on its own goroutine; a panicking handler is logged and dropped.
type Manager struct {
	logger *slog.Logger

	mu                         sync.RWMutex
	executionStartedHandlers   map[string]func(*domain.ExecutionStartedEvent)
	executionCompletedHandlers map[string]func(*domain.ExecutionCompletedEvent)
	nodeCompletedHandlers      map[string]func(*domain.NodeCompletedEvent)
	genericHandlers            []genericSubscription

	inflight sync.WaitGroup
}

type genericSubscription struct {
	id      string
	pattern string
	handler func(string, interface{})
}

var _ ports.EventsPort = (*Manager)(nil)

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		logger:                     logger.With("component", "event-manager"),
		executionStartedHandlers:   make(map[string]func(*domain.ExecutionStartedEvent)),
		executionCompletedHandlers: make(map[string]func(*domain.ExecutionCompletedEvent)),
		nodeCompletedHandlers:      make(map[string]func(*domain.NodeCompletedEvent)),
	}
}

func (m *Manager) OnExecutionStarted(handler func(*domain.ExecutionStartedEvent)) func() {
	id := uuid.New().String()
	m.mu.Lock()
	m.executionStartedHandlers[id] = handler
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.executionStartedHandlers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) OnExecutionCompleted(handler func(*domain.ExecutionCompletedEvent)) func() {
	id := uuid.New().String()
	m.mu.Lock()
	m.executionCompletedHandlers[id] = handler
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.executionCompletedHandlers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) OnNodeCompleted(handler func(*domain.NodeCompletedEvent)) func() {
	id := uuid.New().String()
	m.mu.Lock()
	m.nodeCompletedHandlers[id] = handler
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.nodeCompletedHandlers, id)
		m.mu.Unlock()
	}
}

// Subscribe registers a handler for every topic matching pattern. A trailing
// "*" matches by prefix. The returned id is passed to Unsubscribe.
func (m *Manager) Subscribe(pattern string, handler func(string, interface{})) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := genericSubscription{
		id:      uuid.New().String(),
		pattern: pattern,
		handler: handler,
	}
	m.genericHandlers = append(m.genericHandlers, sub)
	return sub.id
}

func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := m.genericHandlers[:0]
	for _, sub := range m.genericHandlers {
		if sub.id != id {
			filtered = append(filtered, sub)
		}
	}
	m.genericHandlers = filtered
}

func (m *Manager) PublishExecutionStarted(event *domain.ExecutionStartedEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.ExecutionStartedEvent), 0, len(m.executionStartedHandlers))
	for _, handler := range m.executionStartedHandlers {
		handlers = append(handlers, handler)
	}
	m.mu.RUnlock()

	for _, handler := range handlers {
		handler := handler
		m.dispatch(func() { handler(event) })
	}
	m.notifyGenericHandlers(TopicExecutionStarted, event)
}

func (m *Manager) PublishExecutionCompleted(event *domain.ExecutionCompletedEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.ExecutionCompletedEvent), 0, len(m.executionCompletedHandlers))
	for _, handler := range m.executionCompletedHandlers {
		handlers = append(handlers, handler)
	}
	m.mu.RUnlock()

	for _, handler := range handlers {
		handler := handler
		m.dispatch(func() { handler(event) })
	}
	m.notifyGenericHandlers(TopicExecutionCompleted, event)
}

func (m *Manager) PublishNodeCompleted(event *domain.NodeCompletedEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.NodeCompletedEvent), 0, len(m.nodeCompletedHandlers))
	for _, handler := range m.nodeCompletedHandlers {
		handlers = append(handlers, handler)
	}
	m.mu.RUnlock()

	for _, handler := range handlers {
		handler := handler
		m.dispatch(func() { handler(event) })
	}
	m.notifyGenericHandlers(TopicNodeCompleted, event)
}

// Wait blocks until every dispatched handler has returned.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

func (m *Manager) notifyGenericHandlers(key string, eventData interface{}) {
	m.mu.RLock()
	var matchingHandlers []func(string, interface{})
	for _, sub := range m.genericHandlers {
		if patternMatches(sub.pattern, key) {
			matchingHandlers = append(matchingHandlers, sub.handler)
		}
	}
	m.mu.RUnlock()

	for _, handler := range matchingHandlers {
		handler := handler
		m.dispatch(func() { handler(key, eventData) })
	}
}

func (m *Manager) dispatch(fn func()) {
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		m.safeCall(fn)
	}()
}

func patternMatches(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == key
}

func (m *Manager) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panicked", "panic", r)
		}
	}()
	fn()
}
