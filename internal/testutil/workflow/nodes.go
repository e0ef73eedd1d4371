package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
)

// ScriptedNodeType is the node type whose behaviour is read from its config.
const ScriptedNodeType = "scripted"

const (
	keyOutput      = "output"
	keyEcho        = "echo"
	keyFail        = "fail"
	keyError       = "error"
	keyPanic       = "panic"
	keySleepMs     = "sleepMs"
	keyCooperative = "cooperative"
	keyWarnings    = "warnings"
)

// Behaviour describes what a scripted node does when executed.
type Behaviour struct {
	Output      interface{}
	Echo        bool
	Fail        string
	Error       string
	Panic       string
	Sleep       time.Duration
	Cooperative bool
	Warnings    []string
}

func Returns(data interface{}) Behaviour { return Behaviour{Output: data} }

// Echo returns the node's accumulated input data as its output.
func Echo() Behaviour { return Behaviour{Echo: true} }

func Fails(message string) Behaviour { return Behaviour{Fail: message} }

// Errors makes the node return a Go error instead of a failed output.
func Errors(message string) Behaviour { return Behaviour{Error: message} }

func Panics(value string) Behaviour { return Behaviour{Panic: value} }

// Sleeps blocks for d, ignoring cancellation unless cooperative is set.
func Sleeps(d time.Duration, cooperative bool) Behaviour {
	return Behaviour{Sleep: d, Cooperative: cooperative, Echo: true}
}

func (b Behaviour) WithWarnings(warnings ...string) Behaviour {
	b.Warnings = warnings
	return b
}

func (b Behaviour) config() map[string]interface{} {
	cfg := map[string]interface{}{}
	if b.Output != nil {
		cfg[keyOutput] = b.Output
	}
	if b.Echo {
		cfg[keyEcho] = true
	}
	if b.Fail != "" {
		cfg[keyFail] = b.Fail
	}
	if b.Error != "" {
		cfg[keyError] = b.Error
	}
	if b.Panic != "" {
		cfg[keyPanic] = b.Panic
	}
	if b.Sleep > 0 {
		cfg[keySleepMs] = b.Sleep.Milliseconds()
		cfg[keyCooperative] = b.Cooperative
	}
	if len(b.Warnings) > 0 {
		warnings := make([]interface{}, len(b.Warnings))
		for i, w := range b.Warnings {
			warnings[i] = w
		}
		cfg[keyWarnings] = warnings
	}
	return cfg
}

// Call is one recorded node invocation.
type Call struct {
	NodeID     string
	Input      domain.NodeInput
	StartedAt  time.Time
	FinishedAt time.Time
}

// CallLog records scripted node invocations from any goroutine.
type CallLog struct {
	mu          sync.Mutex
	calls       []Call
	entered     map[string]bool
	inFlight    int
	maxInFlight int
}

func NewCallLog() *CallLog {
	return &CallLog{entered: make(map[string]bool)}
}

func (l *CallLog) enter(nodeID string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entered[nodeID] = true
	l.inFlight++
	if l.inFlight > l.maxInFlight {
		l.maxInFlight = l.inFlight
	}
	return time.Now()
}

func (l *CallLog) exit(input domain.NodeInput, started time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight--
	l.calls = append(l.calls, Call{
		NodeID:     input.NodeID,
		Input:      input,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
}

func (l *CallLog) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// Entered reports whether nodeID has started, finished or not.
func (l *CallLog) Entered(nodeID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entered[nodeID]
}

// Get returns the recorded call of nodeID, if it ran.
func (l *CallLog) Get(nodeID string) (Call, bool) {
	for _, c := range l.Calls() {
		if c.NodeID == nodeID {
			return c, true
		}
	}
	return Call{}, false
}

func (l *CallLog) Ran(nodeID string) bool {
	_, ok := l.Get(nodeID)
	return ok
}

func (l *CallLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func (l *CallLog) MaxInFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxInFlight
}

// ScriptedFactory builds scripted nodes that report into log.
func ScriptedFactory(log *CallLog) ports.NodeFactory {
	return func(node domain.Node) (ports.NodePort, error) {
		return &scriptedNode{config: node.Config, log: log}, nil
	}
}

// RegisterScripted registers the scripted node type on registry.
func RegisterScripted(registry ports.NodeRegistryPort, log *CallLog) error {
	return registry.RegisterNodeType(ScriptedNodeType, ScriptedFactory(log))
}

type scriptedNode struct {
	config map[string]interface{}
	log    *CallLog
}

func (n *scriptedNode) Execute(ctx context.Context, input domain.NodeInput) (*domain.NodeOutput, error) {
	started := n.log.enter(input.NodeID)
	defer n.log.exit(input, started)

	if ms := millis(n.config[keySleepMs]); ms > 0 {
		cooperative, _ := n.config[keyCooperative].(bool)
		timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer timer.Stop()

		if cooperative {
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			<-timer.C
		}
	}

	if value, ok := n.config[keyPanic].(string); ok {
		panic(value)
	}
	if message, ok := n.config[keyError].(string); ok {
		return nil, errors.New(message)
	}
	if message, ok := n.config[keyFail].(string); ok {
		return domain.Failed(message), nil
	}

	output := domain.Succeeded(n.config[keyOutput])
	if echo, _ := n.config[keyEcho].(bool); echo {
		output.Data = domain.CloneMap(input.Data)
	}
	if warnings, ok := n.config[keyWarnings].([]interface{}); ok {
		for _, w := range warnings {
			if s, ok := w.(string); ok {
				output.Warnings = append(output.Warnings, s)
			}
		}
	}
	return output, nil
}

// millis reads a duration in milliseconds; configs that went through JSON
// carry float64 numbers.
func millis(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
