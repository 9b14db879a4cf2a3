// Package draft holds the in-flight editable copy of a task during an
// editing session and orchestrates the save pipeline: editor flush,
// discussion-channel teardown, version recording and persistence.
package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/task"
)

// Saver persists a full task record.
type Saver interface {
	UpdateTodo(ctx context.Context, t *task.Task) (*task.Task, error)
}

// ChannelAPI deletes discussion channels during completed/archived
// teardown.
type ChannelAPI interface {
	DeleteChannel(ctx context.Context, chatID string) error
}

// Identity is the session user applied to version entries.
type Identity struct {
	UserID   string
	UserName string
}

// Session owns the editable copy of one task. The backend owns the
// canonical record; the draft is created by cloning it on open and is
// never shared across sessions.
type Session struct {
	id       string
	saver    Saver
	channels ChannelAPI
	log      *slog.Logger
	identity Identity

	original *task.Task
	draft    *task.Task

	// Live editor buffers. The rich-text surfaces hold content that has
	// not yet round-tripped into the draft; it is flushed on stage
	// switches and on save.
	descriptionBuf string
	responseBuf    string
	activeStage    string
}

// Open starts an editing session over a clone of the canonical task.
// channels may be nil when the enclosing view has no discussion surface;
// teardown then assumes the caller deletes the channel itself.
func Open(saver Saver, channels ChannelAPI, identity Identity, canonical *task.Task, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:       uuid.NewString(),
		saver:    saver,
		channels: channels,
		log:      logger,
		identity: identity,
		original: canonical.Clone(),
		draft:    canonical.Clone(),
	}
	if s.draft.StagesEnabled && len(s.draft.TechnicalSpecTabs) > 0 {
		s.activeStage = s.draft.TechnicalSpecTabs[0].ID
	}
	s.loadEditors()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Draft returns the editable copy.
func (s *Session) Draft() *task.Task { return s.draft }

// ActiveStage returns the currently active stage id, if staging is on.
func (s *Session) ActiveStage() string { return s.activeStage }

// Patch is a sparse update applied to the draft. Nil fields are left
// untouched.
type Patch struct {
	Title         *string
	Status        *task.Status
	Priority      *task.Priority
	ReviewComment *string
	// DueDate set to the empty string clears the date, which also resets
	// recurrence and the calendar flag.
	DueDate       *string
	Recurrence    *task.Recurrence
	AddToCalendar *bool

	AssignedByID    *string
	AssignedBy      *string
	DelegatedByID   *string
	DelegatedBy     *string
	AssignedToID    *string
	AssignedToName  *string
	AssignedToIDs   []string
	AssignedToNames []string

	StagesEnabled            *bool
	StageDefaultAssigneeID   *string
	StageDefaultAssigneeName *string

	Tags       []string
	Checklist  []task.ChecklistItem
	ListID     *string
	CategoryID *string
	Archived   *bool
	Completed  *bool
}

// ApplyPatch shallow-merges a patch into the draft.
func (s *Session) ApplyPatch(p Patch) {
	d := s.draft
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Priority != nil {
		d.Priority = *p.Priority
	}
	if p.ReviewComment != nil {
		d.ReviewComment = *p.ReviewComment
	}
	if p.DueDate != nil {
		if *p.DueDate == "" {
			d.ClearDueDate()
		} else {
			d.DueDate = *p.DueDate
		}
	}
	if p.Recurrence != nil {
		d.Recurrence = *p.Recurrence
	}
	if p.AddToCalendar != nil {
		d.AddToCalendar = *p.AddToCalendar
	}
	if p.AssignedByID != nil {
		d.AssignedByID = *p.AssignedByID
	}
	if p.AssignedBy != nil {
		d.AssignedBy = *p.AssignedBy
	}
	if p.DelegatedByID != nil {
		d.DelegatedByID = *p.DelegatedByID
	}
	if p.DelegatedBy != nil {
		d.DelegatedBy = *p.DelegatedBy
	}
	if p.AssignedToID != nil {
		d.AssignedToID = *p.AssignedToID
	}
	if p.AssignedToName != nil {
		d.AssignedToName = *p.AssignedToName
	}
	if p.AssignedToIDs != nil {
		d.AssignedToIDs = p.AssignedToIDs
	}
	if p.AssignedToNames != nil {
		d.AssignedToNames = p.AssignedToNames
	}
	if p.StagesEnabled != nil {
		d.StagesEnabled = *p.StagesEnabled
	}
	if p.StageDefaultAssigneeID != nil {
		d.StageDefaultAssigneeID = p.StageDefaultAssigneeID
	}
	if p.StageDefaultAssigneeName != nil {
		d.StageDefaultAssigneeName = *p.StageDefaultAssigneeName
	}
	if p.Tags != nil {
		d.Tags = p.Tags
	}
	if p.Checklist != nil {
		d.Checklist = p.Checklist
	}
	if p.ListID != nil {
		d.ListID = *p.ListID
	}
	if p.CategoryID != nil {
		d.CategoryID = *p.CategoryID
	}
	if p.Archived != nil {
		d.Archived = *p.Archived
	}
	if p.Completed != nil {
		d.Completed = *p.Completed
	}
}

// SetEditorContent replaces the live editor buffers.
func (s *Session) SetEditorContent(description, response string) {
	s.descriptionBuf = description
	s.responseBuf = response
}

// EditorContent returns the live editor buffers.
func (s *Session) EditorContent() (description, response string) {
	return s.descriptionBuf, s.responseBuf
}

// loadEditors primes the buffers from the draft for the active surface.
func (s *Session) loadEditors() {
	if s.draft.StagesEnabled {
		// Staging on with no tabs leaves no stage surface to edit.
		if s.activeStage == "" {
			s.descriptionBuf = ""
			s.responseBuf = ""
			return
		}
		meta := s.draft.StageMetaFor(s.activeStage)
		s.descriptionBuf = meta.Description
		s.responseBuf = meta.AssigneeResponse
		return
	}
	s.descriptionBuf = s.draft.Description
	s.responseBuf = s.draft.AssigneeResponse
}

// flushEditorsInto writes the live buffers into t: into the active
// stage's entry when staging is enabled, directly onto the task body
// otherwise. Legacy metadata.stageMeta values for the stage are
// migrated into the authoritative entry on the way.
func (s *Session) flushEditorsInto(t *task.Task) {
	if t.StagesEnabled && s.activeStage == "" {
		// Staging on with no tabs: the buffers have no home and must not
		// leak onto the task body.
		return
	}
	if t.StagesEnabled {
		if _, ok := t.StageMeta[s.activeStage]; !ok {
			merged := t.StageMetaFor(s.activeStage)
			next := make(map[string]task.StageMeta, len(t.StageMeta)+1)
			for id, meta := range t.StageMeta {
				next[id] = meta
			}
			next[s.activeStage] = merged
			t.StageMeta = next
		}
		t.UpdateStageMeta(s.activeStage, task.StagePatch{
			Description:      &s.descriptionBuf,
			AssigneeResponse: &s.responseBuf,
		})
		return
	}
	t.Description = s.descriptionBuf
	t.AssigneeResponse = s.responseBuf
}

// SetActiveStage switches the active stage, flushing the current
// editors first so no live content is lost.
func (s *Session) SetActiveStage(stageID string) {
	if stageID == s.activeStage {
		return
	}
	s.flushEditorsInto(s.draft)
	s.activeStage = stageID
	s.loadEditors()
}

// AddStage flushes the active editors, appends a new stage tab and
// makes it active.
func (s *Session) AddStage() task.StageTab {
	s.flushEditorsInto(s.draft)
	tab := s.draft.AddTab()
	s.activeStage = tab.ID
	s.loadEditors()
	return tab
}

// DeleteStage removes a stage tab; activation falls back per the tab
// registry rules.
func (s *Session) DeleteStage(stageID string) error {
	next, err := s.draft.DeleteTab(stageID, s.activeStage)
	if err != nil {
		return err
	}
	if next != s.activeStage {
		s.activeStage = next
		s.loadEditors()
	}
	return nil
}

// Save assembles and persists the draft: flush editors, tear down the
// discussion channel when the task completed or was archived, record a
// version snapshot, and submit the full record. On success the saved
// copy becomes the new baseline.
func (s *Session) Save(ctx context.Context) (*task.Task, error) {
	s.flushEditorsInto(s.draft)

	payload := s.draft.Clone()
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	// Hard invariant: a completed or archived task must never retain a
	// live discussion link.
	if (payload.Completed || payload.Archived) && payload.ChatID != "" {
		if s.channels != nil {
			if err := s.channels.DeleteChannel(ctx, payload.ChatID); err != nil {
				return nil, fmt.Errorf("tear down channel %s: %w", payload.ChatID, err)
			}
		}
		payload.ChatID = ""
		// The channel is gone. Clear the draft too so a retry after a
		// failed submit does not delete it again.
		s.draft.ChatID = ""
	}

	payload.RecordVersion(s.identity.UserID, s.identity.UserName)

	saved, err := s.saver.UpdateTodo(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("save task %s: %w", payload.ID, err)
	}

	s.original = saved.Clone()
	s.draft = saved.Clone()
	s.loadEditors()
	s.log.Info("task saved", "task", saved.ID, "session", s.id)
	return saved, nil
}

// changeSet is the serialized subset compared for unsaved-change
// detection.
type changeSet struct {
	Title           string                    `json:"title"`
	Description     string                    `json:"description"`
	Status          task.Status               `json:"status"`
	ListID          string                    `json:"listId"`
	CategoryID      string                    `json:"categoryId"`
	AssignedByID    string                    `json:"assignedById"`
	DelegatedByID   string                    `json:"delegatedById"`
	AssignedToID    string                    `json:"assignedToId"`
	AssignedToName  string                    `json:"assignedToName"`
	AssignedToIDs   []string                  `json:"assignedToIds"`
	AssignedToNames []string                  `json:"assignedToNames"`
	DueDate         string                    `json:"dueDate"`
	Tags            []string                  `json:"tags"`
	Priority        task.Priority             `json:"priority"`
	Archived        bool                      `json:"archived"`
	StageMeta       map[string]task.StageMeta `json:"stageMeta"`
	Checklist       []task.ChecklistItem      `json:"checklist"`
}

func subsetOf(t *task.Task) changeSet {
	return changeSet{
		Title:           t.Title,
		Description:     t.Description,
		Status:          t.Status,
		ListID:          t.ListID,
		CategoryID:      t.CategoryID,
		AssignedByID:    t.AssignedByID,
		DelegatedByID:   t.DelegatedByID,
		AssignedToID:    t.AssignedToID,
		AssignedToName:  t.AssignedToName,
		AssignedToIDs:   t.AssignedToIDs,
		AssignedToNames: t.AssignedToNames,
		DueDate:         t.DueDate,
		Tags:            t.Tags,
		Priority:        t.Priority,
		Archived:        t.Archived,
		StageMeta:       t.StageMeta,
		Checklist:       t.Checklist,
	}
}

// HasUnsavedChanges compares the draft (with editors flushed into a
// scratch copy) against the originally loaded task over the documented
// field subset.
func (s *Session) HasUnsavedChanges() bool {
	scratch := s.draft.Clone()
	s.flushEditorsInto(scratch)

	current, err := json.Marshal(subsetOf(scratch))
	if err != nil {
		return true
	}
	baseline, err := json.Marshal(subsetOf(s.original))
	if err != nil {
		return true
	}
	return !bytes.Equal(current, baseline)
}

// Close discards the session. With unsaved changes the confirm gate
// must approve the discard; Close reports whether the session may be
// closed.
func (s *Session) Close(confirm func() bool) bool {
	if !s.HasUnsavedChanges() {
		return true
	}
	return confirm != nil && confirm()
}
