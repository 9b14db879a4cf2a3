package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidStatus(t *testing.T) {
	for _, s := range ValidStatuses() {
		if !IsValidStatus(s) {
			t.Errorf("IsValidStatus(%q) = false, want true", s)
		}
	}
	if IsValidStatus("done") {
		t.Error("IsValidStatus(done) = true, want false")
	}
}

func TestIsValidRecurrence(t *testing.T) {
	for _, r := range ValidRecurrences() {
		if !IsValidRecurrence(r) {
			t.Errorf("IsValidRecurrence(%q) = false, want true", r)
		}
	}
	if IsValidRecurrence("hourly") {
		t.Error("IsValidRecurrence(hourly) = true, want false")
	}
}

func TestClearDueDate_ResetsDependents(t *testing.T) {
	tk := &Task{
		DueDate:       "2026-09-15",
		Recurrence:    RecurrenceWeekly,
		AddToCalendar: true,
	}
	tk.ClearDueDate()

	assert.Empty(t, tk.DueDate)
	assert.Equal(t, RecurrenceOnce, tk.Recurrence)
	assert.False(t, tk.AddToCalendar)
}

func TestValidate_RecurrenceRequiresDueDate(t *testing.T) {
	tk := &Task{ID: "t1", Recurrence: RecurrenceMonthly}
	err := tk.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "recurrence", verr.Field)

	tk.DueDate = "2026-10-01"
	assert.NoError(t, tk.Validate())
}

func TestClone_IsDeep(t *testing.T) {
	id := "u1"
	tk := &Task{
		ID:                "t1",
		Tags:              []string{"a"},
		StageMeta:         map[string]StageMeta{"tab1": {AssigneeID: &id}},
		TechnicalSpecTabs: []StageTab{{ID: "tab1", Label: "A"}},
	}

	cl := tk.Clone()
	cl.Tags[0] = "changed"
	cl.UpdateStageMeta("tab1", StagePatch{Assignee: &StageAssignee{Name: "B"}})
	cl.TechnicalSpecTabs[0].Label = "Z"

	assert.Equal(t, "a", tk.Tags[0])
	assert.Equal(t, "A", tk.TechnicalSpecTabs[0].Label)
	require.NotNil(t, tk.StageMeta["tab1"].AssigneeID)
	assert.Equal(t, "u1", *tk.StageMeta["tab1"].AssigneeID)
}
