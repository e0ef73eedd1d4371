package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWorkflow() *Workflow {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &Workflow{
		ID:          "wf-1",
		UserID:      "user-1",
		Name:        "Original",
		Description: "keeps going",
		Nodes: []Node{
			{ID: "a", Name: "A", Type: "source", Config: map[string]interface{}{"url": "http://x"}},
			{ID: "b", Name: "B", Type: "sink"},
		},
		Connections: []NodeConnection{{SourceNodeID: "a", TargetNodeID: "b"}},
		Version:     3,
		CreatedAt:   created,
		UpdatedAt:   created,
		Published:   true,
		Tags:        []string{"one", "two"},
	}
}

func TestApplyPatch_OnlySetFieldsChange(t *testing.T) {
	current := sampleWorkflow()
	name := "Renamed"

	patched, err := ApplyPatch(current, WorkflowPatch{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", patched.Name)
	assert.Equal(t, "keeps going", patched.Description)
	assert.Equal(t, current.Nodes[0].ID, patched.Nodes[0].ID)
	assert.Equal(t, "http://x", patched.Nodes[0].Config["url"])
	assert.Equal(t, []string{"one", "two"}, patched.Tags)
	assert.Equal(t, int64(3), patched.Version)
	assert.True(t, patched.CreatedAt.Equal(current.CreatedAt))
	assert.Equal(t, "Original", current.Name, "source must not be mutated")
}

func TestApplyPatch_SlicesAreReplaced(t *testing.T) {
	current := sampleWorkflow()
	nodes := []Node{{ID: "z", Type: "noop"}}
	connections := []NodeConnection{}
	tags := []string{"three"}

	patched, err := ApplyPatch(current, WorkflowPatch{
		Nodes:       &nodes,
		Connections: &connections,
		Tags:        &tags,
	})
	require.NoError(t, err)

	require.Len(t, patched.Nodes, 1)
	assert.Equal(t, "z", patched.Nodes[0].ID)
	assert.Empty(t, patched.Connections)
	assert.Equal(t, []string{"three"}, patched.Tags)
}

func TestApplyPatch_ScheduleReplacedWholesale(t *testing.T) {
	current := sampleWorkflow()
	current.Schedule = &WorkflowSchedule{Enabled: true, Frequency: FrequencyCustom, CronExpression: "*/5 * * * *"}

	patched, err := ApplyPatch(current, WorkflowPatch{
		Schedule: &WorkflowSchedule{Enabled: true, Frequency: FrequencyDaily, Time: "08:30"},
	})
	require.NoError(t, err)

	require.NotNil(t, patched.Schedule)
	assert.Equal(t, FrequencyDaily, patched.Schedule.Frequency)
	assert.Empty(t, patched.Schedule.CronExpression)
}

func TestApplyPatch_NilWorkflow(t *testing.T) {
	_, err := ApplyPatch(nil, WorkflowPatch{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestWorkflowCloneIsDeep(t *testing.T) {
	original := sampleWorkflow()
	clone := original.Clone()

	clone.Nodes[0].Config["url"] = "http://changed"
	clone.Tags[0] = "changed"
	clone.Connections[0].TargetNodeID = "a"

	assert.Equal(t, "http://x", original.Nodes[0].Config["url"])
	assert.Equal(t, "one", original.Tags[0])
	assert.Equal(t, "b", original.Connections[0].TargetNodeID)
}

func TestWorkflowCloneKeepsEmptySlices(t *testing.T) {
	wf := &Workflow{ID: "w", Nodes: []Node{}, Connections: []NodeConnection{}, Tags: []string{}}
	clone := wf.Clone()

	assert.NotNil(t, clone.Nodes)
	assert.NotNil(t, clone.Connections)
	assert.NotNil(t, clone.Tags)

	bare := (&Workflow{ID: "w"}).Clone()
	assert.Nil(t, bare.Connections)
	assert.Nil(t, bare.Tags)
}
