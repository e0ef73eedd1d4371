package domain

import (
	"errors"
	"fmt"
	"strings"
)

type StorageError struct {
	Type    ErrorType
	Key     string
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *StorageError) Unwrap() error {
	if e.Type == ErrKeyNotFound {
		return ErrNotFound
	}
	return e.Err
}

type ErrorType int

const (
	ErrKeyNotFound ErrorType = iota
	ErrTransactionConflict
	ErrCorrupted
	ErrClosed
)

func NewKeyNotFoundError(key string) *StorageError {
	return &StorageError{
		Type:    ErrKeyNotFound,
		Key:     key,
		Message: "key not found: " + key,
	}
}

func NewCorruptedError(key string, err error) *StorageError {
	return &StorageError{
		Type:    ErrCorrupted,
		Key:     key,
		Message: "corrupted record at " + key,
		Err:     err,
	}
}

var (
	ErrAlreadyStarted     = errors.New("engine already started")
	ErrNotStarted         = errors.New("engine not started")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidWorkflow    = errors.New("invalid workflow")
	ErrCircularDependency = errors.New("circular dependency detected in workflow")
	ErrExecutionTimeout   = errors.New("workflow execution timed out")
	ErrExecutionAborted   = errors.New("execution manually aborted")
	ErrUnknownNodeType    = errors.New("unknown node type")
)

// ValidationError reports a structural problem in a workflow definition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid workflow: " + e.Message
	}
	return fmt.Sprintf("invalid workflow: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidWorkflow
}

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

type NodeFailedError struct {
	NodeID  string
	Message string
	Err     error
}

func (e *NodeFailedError) Error() string {
	return fmt.Sprintf("node %s failed: %s", e.NodeID, e.Message)
}

func (e *NodeFailedError) Unwrap() error {
	return e.Err
}

func NewNodeFailedError(nodeID, message string, err error) *NodeFailedError {
	if message == "" {
		if err != nil {
			message = err.Error()
		} else {
			message = "unknown error"
		}
	}
	return &NodeFailedError{
		NodeID:  nodeID,
		Message: message,
		Err:     err,
	}
}

type NodePanicError struct {
	NodeID     string
	Recovered  interface{}
	StackTrace string
}

func (e *NodePanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Recovered)
}

func NewPanicError(nodeID string, recovered interface{}, stack string) *NodePanicError {
	return &NodePanicError{
		NodeID:     nodeID,
		Recovered:  recovered,
		StackTrace: stack,
	}
}

func IsAlreadyStarted(err error) bool {
	return errors.Is(err, ErrAlreadyStarted)
}

func IsNotStarted(err error) bool {
	return errors.Is(err, ErrNotStarted)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidWorkflow) || errors.Is(err, ErrInvalidInput)
}

func IsCircularDependency(err error) bool {
	return errors.Is(err, ErrCircularDependency)
}

func IsCancellation(err error) bool {
	return errors.Is(err, ErrExecutionTimeout) || errors.Is(err, ErrExecutionAborted)
}

func IsNodeFailure(err error) bool {
	var failed *NodeFailedError
	var panicked *NodePanicError
	return errors.As(err, &failed) || errors.As(err, &panicked)
}

// IsNotFoundError also matches the textual errors returned by badger.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return errors.Is(err, ErrNotFound) ||
		strings.Contains(errStr, "key not found") ||
		strings.Contains(errStr, "not found")
}
