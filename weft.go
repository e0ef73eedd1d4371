// Package weft runs user-defined workflows: directed graphs of typed nodes
// executed level by level, with every run recorded in a local badger store.
//
// Basic usage:
//
//	manager, err := weft.New("./data", logger)
//	manager.RegisterNodeType("http", newHTTPNode)
//	manager.Start(ctx)
//
//	wf, _ := manager.CreateWorkflow(ctx, "user-1", weft.WorkflowDefinition{...})
//	run, _ := manager.ExecuteWorkflow(ctx, wf.ID, "user-1", weft.ExecutionOptions{})
//	final, _ := manager.WaitForExecution(ctx, run.ID)
package weft

import (
	"context"
	"log/slog"

	"github.com/eleven-am/weft/internal/core"
	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
)

// Manager owns storage, the node registry, the engine and the optional
// HTTP transport.
type Manager = core.Manager

type Workflow = domain.Workflow

type WorkflowDefinition = domain.WorkflowDefinition

// WorkflowPatch updates only its non-nil fields.
type WorkflowPatch = domain.WorkflowPatch

type WorkflowSchedule = domain.WorkflowSchedule

type ScheduleFrequency = domain.ScheduleFrequency

const (
	FrequencyHourly  = domain.FrequencyHourly
	FrequencyDaily   = domain.FrequencyDaily
	FrequencyWeekly  = domain.FrequencyWeekly
	FrequencyMonthly = domain.FrequencyMonthly
	FrequencyCustom  = domain.FrequencyCustom
)

type Node = domain.Node

type NodeConnection = domain.NodeConnection

// NodeInput is handed to a node on dispatch. Data holds the outputs of its
// dependencies keyed by node id.
type NodeInput = domain.NodeInput

type NodeOutput = domain.NodeOutput

// NodePort is the runtime form of a node. Implementations should return
// promptly once ctx is done.
type NodePort = ports.NodePort

type NodeFunc = ports.NodeFunc

// NodeFactory builds a NodePort from its definition, once per node per run.
type NodeFactory = ports.NodeFactory

type ExecutionOptions = domain.ExecutionOptions

// ExecutionRequest is the JSON form of ExecutionOptions, with the timeout
// in milliseconds.
type ExecutionRequest = domain.ExecutionRequest

type WorkflowExecution = domain.WorkflowExecution

type ExecutionStatus = domain.ExecutionStatus

const (
	ExecutionRunning = domain.ExecutionRunning
	ExecutionSuccess = domain.ExecutionSuccess
	ExecutionFailed  = domain.ExecutionFailed
	ExecutionTimeout = domain.ExecutionTimeout
)

type NodeExecution = domain.NodeExecution

type ExecutionPage = domain.ExecutionPage

type ExecutionMetrics = domain.ExecutionMetrics

type ExecutionStartedEvent = domain.ExecutionStartedEvent

type ExecutionCompletedEvent = domain.ExecutionCompletedEvent

type NodeCompletedEvent = domain.NodeCompletedEvent

// RunContext identifies the run a node executes under.
type RunContext = domain.RunContext

var (
	ErrNotFound           = domain.ErrNotFound
	ErrInvalidInput       = domain.ErrInvalidInput
	ErrInvalidWorkflow    = domain.ErrInvalidWorkflow
	ErrInvalidConfig      = domain.ErrInvalidConfig
	ErrCircularDependency = domain.ErrCircularDependency
	ErrExecutionTimeout   = domain.ErrExecutionTimeout
	ErrExecutionAborted   = domain.ErrExecutionAborted
	ErrNotStarted         = domain.ErrNotStarted
	ErrAlreadyStarted     = domain.ErrAlreadyStarted
)

// New creates a manager storing its data under dataDir. An empty dataDir
// keeps everything in memory.
func New(dataDir string, logger *slog.Logger) (*Manager, error) {
	return core.New(dataDir, logger)
}

// NewWithConfig creates a manager from a full configuration, usually built
// with NewConfigBuilder or LoadConfig.
func NewWithConfig(config *Config) (*Manager, error) {
	return core.NewWithConfig(config)
}

// GetRunContext returns the run metadata from the context passed to a
// node's Execute method.
func GetRunContext(ctx context.Context) (*RunContext, bool) {
	return domain.GetRunContext(ctx)
}

func Succeeded(data interface{}) *NodeOutput {
	return domain.Succeeded(data)
}

func Failed(message string) *NodeOutput {
	return domain.Failed(message)
}
