package task

import (
	"fmt"
	"math/rand"
	"time"
)

// VersionHistoryCap is the number of snapshots retained per task. Older
// entries are evicted newest-first-ordered, oldest out.
const VersionHistoryCap = 50

// Snapshot is the point-in-time capture of the editable fields. Pointer
// fields distinguish "captured as empty" from "not captured": snapshots
// taken before a field existed must not null it out on restore.
type Snapshot struct {
	Title             *string              `json:"title,omitempty"`
	Description       *string              `json:"description,omitempty"`
	AssigneeResponse  *string              `json:"assigneeResponse,omitempty"`
	StageMeta         map[string]StageMeta `json:"stageMeta,omitempty"`
	TechnicalSpecTabs []StageTab           `json:"technicalSpecTabs,omitempty"`
	StagesEnabled     *bool                `json:"stagesEnabled,omitempty"`
	Priority          *Priority            `json:"priority,omitempty"`
	Status            *Status              `json:"status,omitempty"`
	DueDate           *string              `json:"dueDate,omitempty"`
	Recurrence        *Recurrence          `json:"recurrence,omitempty"`
}

// VersionEntry is one immutable item of a task's version history.
type VersionEntry struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatedByID   string    `json:"createdById,omitempty"`
	CreatedByName string    `json:"createdByName,omitempty"`
	Snapshot      Snapshot  `json:"snapshot"`
}

func newVersionID(now time.Time) string {
	return fmt.Sprintf("%d-%06d", now.UnixMilli(), rand.Intn(1_000_000))
}

// RecordVersion captures the task's current editable fields, prepends
// the entry to the history and truncates to the cap. Called on every
// successful save; restores are forward-recorded the same way.
func (t *Task) RecordVersion(actorID, actorName string) VersionEntry {
	now := time.Now()

	stageMeta := make(map[string]StageMeta, len(t.StageMeta))
	for id, meta := range t.StageMeta {
		stageMeta[id] = meta
	}
	tabs := append([]StageTab(nil), t.TechnicalSpecTabs...)

	title := t.Title
	description := t.Description
	response := t.AssigneeResponse
	stagesEnabled := t.StagesEnabled
	priority := t.Priority
	status := t.Status
	dueDate := t.DueDate
	recurrence := t.Recurrence

	entry := VersionEntry{
		ID:            newVersionID(now),
		CreatedAt:     now,
		CreatedByID:   actorID,
		CreatedByName: actorName,
		Snapshot: Snapshot{
			Title:             &title,
			Description:       &description,
			AssigneeResponse:  &response,
			StageMeta:         stageMeta,
			TechnicalSpecTabs: tabs,
			StagesEnabled:     &stagesEnabled,
			Priority:          &priority,
			Status:            &status,
			DueDate:           &dueDate,
			Recurrence:        &recurrence,
		},
	}

	history := make([]VersionEntry, 0, len(t.VersionHistory)+1)
	history = append(history, entry)
	history = append(history, t.VersionHistory...)
	if len(history) > VersionHistoryCap {
		history = history[:VersionHistoryCap]
	}
	t.VersionHistory = history

	return entry
}

// RestoreVersion overwrites the task's fields from a snapshot. Only
// fields present in the snapshot are applied; stageMeta and the tab list
// are replaced wholesale. Restoring does not persist anything: the next
// explicit save records the restored state as a new version.
func (t *Task) RestoreVersion(entry VersionEntry) {
	s := entry.Snapshot
	if s.Title != nil {
		t.Title = *s.Title
	}
	if s.Description != nil {
		t.Description = *s.Description
	}
	if s.AssigneeResponse != nil {
		t.AssigneeResponse = *s.AssigneeResponse
	}
	if s.StageMeta != nil {
		stageMeta := make(map[string]StageMeta, len(s.StageMeta))
		for id, meta := range s.StageMeta {
			stageMeta[id] = meta
		}
		t.StageMeta = stageMeta
	}
	if s.TechnicalSpecTabs != nil {
		t.TechnicalSpecTabs = append([]StageTab(nil), s.TechnicalSpecTabs...)
	}
	if s.StagesEnabled != nil {
		t.StagesEnabled = *s.StagesEnabled
	}
	if s.Priority != nil {
		t.Priority = *s.Priority
	}
	if s.Status != nil {
		t.Status = *s.Status
	}
	if s.DueDate != nil {
		t.DueDate = *s.DueDate
	}
	if s.Recurrence != nil {
		t.Recurrence = *s.Recurrence
	}
}
