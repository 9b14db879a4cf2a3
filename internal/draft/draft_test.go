package draft

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/task"
)

type stubSaver struct {
	saveCalls int
	saveErr   error
	lastSaved *task.Task
	// respond, when set, replaces the echoed payload.
	respond *task.Task
}

func (s *stubSaver) UpdateTodo(ctx context.Context, t *task.Task) (*task.Task, error) {
	s.saveCalls++
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.lastSaved = t.Clone()
	if s.respond != nil {
		return s.respond.Clone(), nil
	}
	return t.Clone(), nil
}

type stubChannels struct {
	deleteCalls int
	deleteErr   error
	lastChatID  string
}

func (s *stubChannels) DeleteChannel(ctx context.Context, chatID string) error {
	s.deleteCalls++
	s.lastChatID = chatID
	return s.deleteErr
}

func ident() Identity { return Identity{UserID: "u1", UserName: "Alice"} }

func TestSave_DescriptionEditRecordsVersion(t *testing.T) {
	saver := &stubSaver{}
	canonical := &task.Task{ID: "t1", Title: "T", Description: "old"}
	s := Open(saver, nil, ident(), canonical, nil)

	s.SetEditorContent("new", "")
	saved, err := s.Save(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "new", saved.Description)
	require.Len(t, saved.VersionHistory, 1)
	entry := saved.VersionHistory[0]
	assert.Equal(t, "u1", entry.CreatedByID)
	assert.Equal(t, "Alice", entry.CreatedByName)
	require.NotNil(t, entry.Snapshot.Description)
	assert.Equal(t, "new", *entry.Snapshot.Description)

	assert.Equal(t, "old", canonical.Description, "canonical record untouched")
	assert.False(t, s.HasUnsavedChanges(), "saved copy becomes the baseline")
}

func TestSave_StageEditorFlushesIntoActiveStage(t *testing.T) {
	saver := &stubSaver{}
	canonical := &task.Task{
		ID:            "t1",
		StagesEnabled: true,
		TechnicalSpecTabs: []task.StageTab{
			{ID: "tab1", Label: "Design"},
			{ID: "tab2", Label: "Build"},
		},
	}
	s := Open(saver, nil, ident(), canonical, nil)
	require.Equal(t, "tab1", s.ActiveStage(), "first tab active on open")

	s.SetEditorContent("design notes", "done")
	saved, err := s.Save(context.Background())
	require.NoError(t, err)

	meta := saved.StageMeta["tab1"]
	assert.Equal(t, "design notes", meta.Description)
	assert.Equal(t, "done", meta.AssigneeResponse)
	assert.Empty(t, saved.Description, "task body untouched while staging is on")
}

func TestSave_MigratesLegacyStageEntryOnWrite(t *testing.T) {
	saver := &stubSaver{}
	canonical := &task.Task{
		ID:                "t1",
		StagesEnabled:     true,
		TechnicalSpecTabs: []task.StageTab{{ID: "tab1", Label: "A"}},
		Metadata: &task.Metadata{
			StageMeta: map[string]task.StageMeta{
				"tab1": {Status: task.StatusReview, ReviewComment: "needs work"},
			},
		},
	}
	s := Open(saver, nil, ident(), canonical, nil)

	s.SetEditorContent("updated", "")
	saved, err := s.Save(context.Background())
	require.NoError(t, err)

	meta, ok := saved.StageMeta["tab1"]
	require.True(t, ok, "legacy entry migrated into the authoritative map")
	assert.Equal(t, task.StatusReview, meta.Status)
	assert.Equal(t, "needs work", meta.ReviewComment)
	assert.Equal(t, "updated", meta.Description)
	assert.Equal(t, "needs work", canonical.Metadata.StageMeta["tab1"].ReviewComment,
		"legacy store never mutated")
}

func TestAddStage(t *testing.T) {
	saver := &stubSaver{}
	canonical := &task.Task{
		ID:            "t1",
		StagesEnabled: true,
		TechnicalSpecTabs: []task.StageTab{
			{ID: "tab1", Label: "A"},
			{ID: "tab2", Label: "B"},
		},
	}
	s := Open(saver, nil, ident(), canonical, nil)
	s.SetEditorContent("stage one notes", "")

	tab := s.AddStage()

	assert.Regexp(t, regexp.MustCompile(`^tab\d+$`), tab.ID)
	assert.NotEqual(t, "tab1", tab.ID)
	assert.NotEqual(t, "tab2", tab.ID)
	assert.Equal(t, task.DefaultStageLabel, tab.Label)
	assert.Len(t, s.Draft().TechnicalSpecTabs, 3)
	assert.Equal(t, tab.ID, s.ActiveStage())
	assert.Equal(t, "stage one notes", s.Draft().StageMeta["tab1"].Description,
		"previous stage's editors flushed before the switch")
}

func TestSetActiveStage_FlushesAndReloads(t *testing.T) {
	canonical := &task.Task{
		ID:            "t1",
		StagesEnabled: true,
		TechnicalSpecTabs: []task.StageTab{
			{ID: "tab1", Label: "A"},
			{ID: "tab2", Label: "B"},
		},
		StageMeta: map[string]task.StageMeta{
			"tab2": {Description: "second stage"},
		},
	}
	s := Open(&stubSaver{}, nil, ident(), canonical, nil)

	s.SetEditorContent("first stage", "")
	s.SetActiveStage("tab2")

	assert.Equal(t, "first stage", s.Draft().StageMeta["tab1"].Description)
	assert.Equal(t, "tab2", s.ActiveStage())
	d, r := s.EditorContent()
	assert.Equal(t, "second stage", d)
	assert.Empty(t, r)
}

func TestDeleteStage_ActivationFallback(t *testing.T) {
	canonical := &task.Task{
		ID:            "t1",
		StagesEnabled: true,
		TechnicalSpecTabs: []task.StageTab{
			{ID: "tab1", Label: "A"},
			{ID: "tab2", Label: "B"},
		},
	}
	s := Open(&stubSaver{}, nil, ident(), canonical, nil)
	s.SetActiveStage("tab2")

	require.NoError(t, s.DeleteStage("tab2"))
	assert.Equal(t, "tab1", s.ActiveStage())

	err := s.DeleteStage("tab1")
	assert.ErrorIs(t, err, task.ErrLastTab)
}

func TestSave_CompletedTearsDownChannel(t *testing.T) {
	saver := &stubSaver{}
	channels := &stubChannels{}
	canonical := &task.Task{ID: "t1", ChatID: "c1"}
	s := Open(saver, channels, ident(), canonical, nil)

	completed := true
	s.ApplyPatch(Patch{Completed: &completed})
	saved, err := s.Save(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, channels.deleteCalls)
	assert.Equal(t, "c1", channels.lastChatID)
	assert.Empty(t, saved.ChatID, "persisted payload carries no channel link")
	assert.Empty(t, saver.lastSaved.ChatID)
}

func TestSave_TeardownFailureAborts(t *testing.T) {
	saver := &stubSaver{}
	channels := &stubChannels{deleteErr: fmt.Errorf("boom")}
	canonical := &task.Task{ID: "t1", ChatID: "c1"}
	s := Open(saver, channels, ident(), canonical, nil)

	archived := true
	s.ApplyPatch(Patch{Archived: &archived})
	_, err := s.Save(context.Background())
	require.Error(t, err)
	assert.Zero(t, saver.saveCalls, "no save after a failed teardown")
	assert.Equal(t, "c1", s.Draft().ChatID, "draft keeps the link for retry")
}

func TestSave_RetryAfterTeardownDoesNotDeleteTwice(t *testing.T) {
	saver := &stubSaver{saveErr: fmt.Errorf("backend down")}
	channels := &stubChannels{}
	canonical := &task.Task{ID: "t1", ChatID: "c1"}
	s := Open(saver, channels, ident(), canonical, nil)

	completed := true
	s.ApplyPatch(Patch{Completed: &completed})
	_, err := s.Save(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, channels.deleteCalls)
	assert.Empty(t, s.Draft().ChatID, "torn-down channel cleared from the draft")

	saver.saveErr = nil
	saved, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, channels.deleteCalls, "retry must not delete the channel again")
	assert.Empty(t, saved.ChatID)
}

func TestStagingWithoutTabsKeepsBodyUntouched(t *testing.T) {
	saver := &stubSaver{}
	canonical := &task.Task{ID: "t1", StagesEnabled: true, Description: "body"}
	s := Open(saver, nil, ident(), canonical, nil)

	d, r := s.EditorContent()
	assert.Empty(t, d)
	assert.Empty(t, r)

	s.SetEditorContent("typed with nowhere to go", "")
	saved, err := s.Save(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "body", saved.Description)
	assert.Empty(t, saved.AssigneeResponse)
	assert.Empty(t, saved.StageMeta)

	tab := s.AddStage()
	s.SetEditorContent("first stage notes", "")
	saved, err = s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first stage notes", saved.StageMeta[tab.ID].Description)
	assert.Equal(t, "body", saved.Description)
}

func TestSave_FailureLeavesBaseline(t *testing.T) {
	saver := &stubSaver{saveErr: fmt.Errorf("backend down")}
	canonical := &task.Task{ID: "t1", Description: "old"}
	s := Open(saver, nil, ident(), canonical, nil)

	s.SetEditorContent("new", "")
	_, err := s.Save(context.Background())
	require.Error(t, err)

	assert.True(t, s.HasUnsavedChanges(), "edit still pending after failed save")
	assert.Empty(t, s.Draft().VersionHistory, "no version recorded on failure")
}

func TestSave_ValidationRejectsBadRecurrence(t *testing.T) {
	saver := &stubSaver{}
	canonical := &task.Task{ID: "t1"}
	s := Open(saver, nil, ident(), canonical, nil)

	rec := task.RecurrenceWeekly
	s.ApplyPatch(Patch{Recurrence: &rec})
	_, err := s.Save(context.Background())

	var verr *task.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, saver.saveCalls)
}

func TestApplyPatch_ClearDueDateResetsDependents(t *testing.T) {
	canonical := &task.Task{
		ID:            "t1",
		DueDate:       "2026-09-15",
		Recurrence:    task.RecurrenceWeekly,
		AddToCalendar: true,
	}
	s := Open(&stubSaver{}, nil, ident(), canonical, nil)

	empty := ""
	s.ApplyPatch(Patch{DueDate: &empty})

	d := s.Draft()
	assert.Empty(t, d.DueDate)
	assert.Equal(t, task.RecurrenceOnce, d.Recurrence)
	assert.False(t, d.AddToCalendar)
}

func TestHasUnsavedChanges(t *testing.T) {
	canonical := &task.Task{ID: "t1", Title: "T", Description: "old"}
	s := Open(&stubSaver{}, nil, ident(), canonical, nil)
	assert.False(t, s.HasUnsavedChanges())

	title := "T2"
	s.ApplyPatch(Patch{Title: &title})
	assert.True(t, s.HasUnsavedChanges())

	title = "T"
	s.ApplyPatch(Patch{Title: &title})
	assert.False(t, s.HasUnsavedChanges(), "reverting the edit clears the flag")

	s.SetEditorContent("typed but not applied", "")
	assert.True(t, s.HasUnsavedChanges(), "live editor content counts")
}

func TestClose_ConfirmGate(t *testing.T) {
	canonical := &task.Task{ID: "t1", Title: "T"}
	s := Open(&stubSaver{}, nil, ident(), canonical, nil)

	assert.True(t, s.Close(nil), "clean sessions close without confirmation")

	title := "T2"
	s.ApplyPatch(Patch{Title: &title})
	assert.False(t, s.Close(func() bool { return false }))
	assert.True(t, s.Close(func() bool { return true }))
	assert.False(t, s.Close(nil), "dirty session with no gate stays open")
}

func TestOpen_SessionsAreIsolated(t *testing.T) {
	canonical := &task.Task{ID: "t1", Title: "T"}
	a := Open(&stubSaver{}, nil, ident(), canonical, nil)
	b := Open(&stubSaver{}, nil, ident(), canonical, nil)

	assert.NotEqual(t, a.ID(), b.ID())

	title := "edited"
	a.ApplyPatch(Patch{Title: &title})
	assert.Equal(t, "T", b.Draft().Title)
	assert.Equal(t, "T", canonical.Title)
}
