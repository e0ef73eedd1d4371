package domain

import "time"

const DefaultExecutionTimeout = 5 * time.Minute

type ExecutionOptions struct {
	Timeout         time.Duration          `json:"timeout"`
	DebugMode       bool                   `json:"debugMode"`
	ContinueOnError bool                   `json:"continueOnError"`
	CustomInput     map[string]interface{} `json:"customInput,omitempty"`
}

func DefaultExecutionOptions() ExecutionOptions {
	return ExecutionOptions{
		Timeout: DefaultExecutionTimeout,
	}
}

// WithDefaults fills zero values. A non-positive timeout means the default.
func (o ExecutionOptions) WithDefaults() ExecutionOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultExecutionTimeout
	}
	return o
}

// ExecutionRequest is the wire form of ExecutionOptions. A missing or
// non-positive TimeoutMs means DefaultExecutionTimeout.
type ExecutionRequest struct {
	UserID          string                 `json:"userId,omitempty"`
	TimeoutMs       int64                  `json:"timeoutMs,omitempty"`
	DebugMode       bool                   `json:"debugMode"`
	ContinueOnError bool                   `json:"continueOnError"`
	CustomInput     map[string]interface{} `json:"customInput,omitempty"`
}

func (r ExecutionRequest) Options() ExecutionOptions {
	return ExecutionOptions{
		Timeout:         time.Duration(r.TimeoutMs) * time.Millisecond,
		DebugMode:       r.DebugMode,
		ContinueOnError: r.ContinueOnError,
		CustomInput:     r.CustomInput,
	}.WithDefaults()
}
