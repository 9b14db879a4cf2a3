package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultStageLabel is the label given to newly added stage tabs.
const DefaultStageLabel = "New stage"

// ErrLastTab is returned when deleting the only remaining stage tab.
var ErrLastTab = errors.New("cannot delete the last stage tab")

// NotFoundError reports a referenced stage, grant or message that does
// not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NormalizeTabID reconciles the two historical tab id schemes by
// stripping a literal "tab_" prefix down to "tab". The result is stable
// under repeated application: ids without the prefix pass through
// unchanged.
func NormalizeTabID(id string) string {
	if rest, ok := strings.CutPrefix(id, "tab_"); ok {
		return "tab" + rest
	}
	return id
}

// MergedStageMeta returns the authoritative per-stage view: the legacy
// metadata.stageMeta entries overlaid by stageMeta. The legacy location
// is only ever read; writes land complete entries in StageMeta.
func (t *Task) MergedStageMeta() map[string]StageMeta {
	merged := make(map[string]StageMeta)
	if t.Metadata != nil {
		for id, meta := range t.Metadata.StageMeta {
			merged[id] = meta
		}
	}
	for id, meta := range t.StageMeta {
		merged[id] = meta
	}
	return merged
}

// StageMetaFor returns the merged entry for a stage id. Absent stages get
// a default entry with pending status and empty editor bodies.
func (t *Task) StageMetaFor(stageID string) StageMeta {
	if meta, ok := t.MergedStageMeta()[stageID]; ok {
		if meta.Status == "" {
			meta.Status = StatusPending
		}
		return meta
	}
	return StageMeta{Status: StatusPending}
}

// StageAssignee is an id/name pair for a stage assignee. ID may be nil
// while Name is set: a stage can name an external contact with no
// directory entry.
type StageAssignee struct {
	ID   *string
	Name string
}

// StagePatch is a sparse update for a stage entry. Nil fields are left
// untouched by UpdateStageMeta.
type StagePatch struct {
	Status           *Status
	Assignee         *StageAssignee
	DueDate          *string
	ReviewComment    *string
	Description      *string
	AssigneeResponse *string
}

// UpdateStageMeta shallow-merges patch into the current stageMeta entry
// and writes it back. Only the authoritative map is consulted and
// mutated; callers that want to preserve legacy metadata.stageMeta values
// must copy them into StageMeta first. The whole map is replaced so that
// change detection can rely on reference inequality.
func (t *Task) UpdateStageMeta(stageID string, patch StagePatch) {
	entry := t.StageMeta[stageID]

	if patch.Status != nil {
		entry.Status = *patch.Status
	}
	if patch.Assignee != nil {
		entry.AssigneeID = patch.Assignee.ID
		entry.AssigneeName = patch.Assignee.Name
	}
	if patch.DueDate != nil {
		entry.DueDate = *patch.DueDate
	}
	if patch.ReviewComment != nil {
		entry.ReviewComment = *patch.ReviewComment
	}
	if patch.Description != nil {
		entry.Description = *patch.Description
	}
	if patch.AssigneeResponse != nil {
		entry.AssigneeResponse = *patch.AssigneeResponse
	}

	next := make(map[string]StageMeta, len(t.StageMeta)+1)
	for id, meta := range t.StageMeta {
		next[id] = meta
	}
	next[stageID] = entry
	t.StageMeta = next
}

// AddTab appends a new stage tab with a timestamp-derived id and the
// default label, and returns it. Callers must flush the active stage's
// in-progress editor content before adding, since the new tab becomes
// the active one.
func (t *Task) AddTab() StageTab {
	tab := StageTab{
		ID:    fmt.Sprintf("tab%d", time.Now().UnixMilli()),
		Label: DefaultStageLabel,
	}
	t.TechnicalSpecTabs = append(t.TechnicalSpecTabs, tab)
	return tab
}

// DeleteTab removes a stage tab and its stageMeta entry. The last
// remaining tab cannot be deleted. activeID is the currently active tab;
// the returned id is the tab that should be active afterwards (the new
// first tab when the active one was deleted).
func (t *Task) DeleteTab(id, activeID string) (string, error) {
	if len(t.TechnicalSpecTabs) <= 1 {
		return activeID, ErrLastTab
	}

	idx := -1
	for i, tab := range t.TechnicalSpecTabs {
		if tab.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return activeID, &NotFoundError{Kind: "stage", ID: id}
	}

	t.TechnicalSpecTabs = append(t.TechnicalSpecTabs[:idx:idx], t.TechnicalSpecTabs[idx+1:]...)

	if _, ok := t.StageMeta[id]; ok {
		next := make(map[string]StageMeta, len(t.StageMeta))
		for k, v := range t.StageMeta {
			if k != id {
				next[k] = v
			}
		}
		t.StageMeta = next
	}

	if activeID == id {
		return t.TechnicalSpecTabs[0].ID, nil
	}
	return activeID, nil
}

// RenameTab sets a tab's label. Blank labels are ignored. Returns true
// when the label changed.
func (t *Task) RenameTab(id, label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	for i, tab := range t.TechnicalSpecTabs {
		if tab.ID == id {
			t.TechnicalSpecTabs[i].Label = label
			return true
		}
	}
	return false
}

// EffectiveStageAssignee resolves the assignee for a stage. The stage
// override wins when either its id or its name is present, even if the
// other half is missing; otherwise the task-level default applies.
func (t *Task) EffectiveStageAssignee(stageID string) StageAssignee {
	meta := t.StageMetaFor(stageID)
	if meta.AssigneeID != nil || meta.AssigneeName != "" {
		return StageAssignee{ID: meta.AssigneeID, Name: meta.AssigneeName}
	}
	return StageAssignee{ID: t.StageDefaultAssigneeID, Name: t.StageDefaultAssigneeName}
}
