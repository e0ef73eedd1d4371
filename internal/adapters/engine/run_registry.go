package engine

import (
	"sync"
)

// activeRun ties together everything needed to abort or await one execution.
type activeRun struct {
	executionID string
	workflowID  string
	handle      *runHandle
	recorder    *Recorder
}

type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*activeRun
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*activeRun)}
}

func (r *runRegistry) add(run *activeRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.executionID] = run
}

func (r *runRegistry) get(executionID string) (*activeRun, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[executionID]
	return run, ok
}

func (r *runRegistry) remove(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, executionID)
}

func (r *runRegistry) snapshot() []*activeRun {
	r.mu.Lock()
	defer r.mu.Unlock()

	runs := make([]*activeRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	return runs
}

func (r *runRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
