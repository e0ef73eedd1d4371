package domain

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/eleven-am/weft/internal/xjson"
)

// ApplyPatch merges the non-nil fields of patch over a copy of current.
// Slices are replaced, never appended. Identity, version and timestamps are
// left to the caller.
func ApplyPatch(current *Workflow, patch WorkflowPatch) (*Workflow, error) {
	if current == nil {
		return nil, fmt.Errorf("apply patch: %w", ErrInvalidInput)
	}

	currentData, err := xjson.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("apply patch: marshal current: %w", err)
	}
	patchData, err := xjson.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("apply patch: marshal patch: %w", err)
	}

	var currentMap, patchMap map[string]interface{}
	if err := xjson.Unmarshal(currentData, &currentMap); err != nil {
		return nil, fmt.Errorf("apply patch: unmarshal current: %w", err)
	}
	if err := xjson.Unmarshal(patchData, &patchMap); err != nil {
		return nil, fmt.Errorf("apply patch: unmarshal patch: %w", err)
	}

	// schedules are replaced wholesale below, a field merge would leave
	// stale cron settings behind
	delete(patchMap, "schedule")

	if err := mergo.Merge(&currentMap, patchMap, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("apply patch: merge: %w", err)
	}

	merged, err := xjson.Marshal(currentMap)
	if err != nil {
		return nil, fmt.Errorf("apply patch: marshal merged: %w", err)
	}

	var result Workflow
	if err := xjson.Unmarshal(merged, &result); err != nil {
		return nil, fmt.Errorf("apply patch: unmarshal merged: %w", err)
	}

	if patch.Schedule != nil {
		schedule := patch.Schedule.Clone()
		result.Schedule = &schedule
	}

	return &result, nil
}
