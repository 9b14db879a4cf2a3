package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/task"
)

// stubBackend scripts chat API behavior per test.
type stubBackend struct {
	channels []Channel
	messages map[string][]Message

	createCalls int
	deleteCalls int
	lastCreate  CreateChannelRequest
	lastEditID  string
	lastPost    PostMessageRequest

	listErr error
	// onListMessages runs before a ListMessages response is returned,
	// letting tests interleave a newer reload.
	onListMessages func()
}

func newStubBackend() *stubBackend {
	return &stubBackend{messages: make(map[string][]Message)}
}

func (s *stubBackend) ListChannels(ctx context.Context, userID string) ([]Channel, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.channels, nil
}

func (s *stubBackend) CreateChannel(ctx context.Context, req CreateChannelRequest) (*Channel, error) {
	s.createCalls++
	s.lastCreate = req
	ch := Channel{
		ID:             fmt.Sprintf("chat%d", s.createCalls),
		Title:          req.Title,
		IsGroup:        req.IsGroup,
		ParticipantIDs: req.ParticipantIDs,
		CreatorID:      req.CreatorID,
		TodoID:         req.TodoID,
	}
	s.channels = append(s.channels, ch)
	return &ch, nil
}

func (s *stubBackend) DeleteChannel(ctx context.Context, chatID string) error {
	s.deleteCalls++
	return nil
}

func (s *stubBackend) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	// Snapshot before the hook so an interleaved reload observes newer
	// data than this response carries.
	msgs := append([]Message(nil), s.messages[chatID]...)
	if s.onListMessages != nil {
		hook := s.onListMessages
		s.onListMessages = nil
		hook()
	}
	return msgs, nil
}

func (s *stubBackend) PostMessage(ctx context.Context, chatID string, req PostMessageRequest) (*Message, error) {
	s.lastPost = req
	msg := Message{
		ID:          fmt.Sprintf("m%d", len(s.messages[chatID])+1),
		ChatID:      chatID,
		AuthorID:    req.AuthorID,
		AuthorName:  req.AuthorName,
		Content:     req.Content,
		Attachments: req.Attachments,
	}
	s.messages[chatID] = append(s.messages[chatID], msg)
	return &msg, nil
}

func (s *stubBackend) EditMessage(ctx context.Context, messageID, content string) (*Message, error) {
	s.lastEditID = messageID
	for chatID, msgs := range s.messages {
		for i, m := range msgs {
			if m.ID == messageID {
				s.messages[chatID][i].Content = content
				return &s.messages[chatID][i], nil
			}
		}
	}
	return nil, fmt.Errorf("message %s not found", messageID)
}

func (s *stubBackend) DeleteMessage(ctx context.Context, messageID string) error {
	for chatID, msgs := range s.messages {
		for i, m := range msgs {
			if m.ID == messageID {
				s.messages[chatID] = append(msgs[:i:i], msgs[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("message %s not found", messageID)
}

func TestResolveOrCreate_CachedIDLinksImmediately(t *testing.T) {
	tk := &task.Task{ID: "t1", ChatID: "chat9"}
	l := NewLinker(newStubBackend(), tk, "u1", "Alice", nil)

	require.NoError(t, l.ResolveOrCreate(context.Background()))
	assert.Equal(t, StateLinked, l.State())
}

func TestResolveOrCreate_DiscoversOutOfBandChannel(t *testing.T) {
	api := newStubBackend()
	api.channels = []Channel{
		{ID: "chatA", TodoID: "other"},
		{ID: "chatB", TodoID: "t1"},
	}
	tk := &task.Task{ID: "t1"}
	l := NewLinker(api, tk, "u1", "Alice", nil)

	require.NoError(t, l.ResolveOrCreate(context.Background()))
	assert.Equal(t, StateLinked, l.State())
	assert.Equal(t, "chatB", tk.ChatID)
	assert.Zero(t, api.createCalls, "resolution never creates a channel")
}

func TestResolveOrCreate_NoChannelStaysUnlinked(t *testing.T) {
	tk := &task.Task{ID: "t1"}
	l := NewLinker(newStubBackend(), tk, "u1", "Alice", nil)

	require.NoError(t, l.ResolveOrCreate(context.Background()))
	assert.Equal(t, StateUnlinked, l.State())
	assert.Empty(t, tk.ChatID)
}

func TestEnsureChannel_ParticipantSet(t *testing.T) {
	api := newStubBackend()
	tk := &task.Task{
		ID:            "t1",
		Title:         "Fix the ramp",
		AssignedByID:  "u3",
		AssignedToIDs: []string{"u1", "u2"},
	}
	l := NewLinker(api, tk, "u4", "Dora", nil)

	require.NoError(t, l.EnsureChannel(context.Background()))

	assert.Equal(t, StateLinked, l.State())
	assert.Equal(t, "chat1", tk.ChatID)
	assert.True(t, api.lastCreate.IsGroup)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3", "u4"}, api.lastCreate.ParticipantIDs)
	assert.Equal(t, "Fix the ramp", api.lastCreate.Title)
	assert.Equal(t, "t1", api.lastCreate.TodoID)
	assert.Equal(t, "u4", api.lastCreate.CreatorID)
}

func TestEnsureChannel_DeduplicatesAndPrefersIDsList(t *testing.T) {
	api := newStubBackend()
	tk := &task.Task{
		ID:            "t1",
		AssignedByID:  "u1",
		DelegatedByID: "u1",
		AssignedToID:  "ignored-single",
		AssignedToIDs: []string{"u1", "u2"},
	}
	l := NewLinker(api, tk, "u1", "Alice", nil)

	require.NoError(t, l.EnsureChannel(context.Background()))
	assert.Equal(t, []string{"u1", "u2"}, api.lastCreate.ParticipantIDs)
	assert.False(t, api.lastCreate.IsGroup, "two participants is a direct chat")
}

func TestEnsureChannel_NoParticipants(t *testing.T) {
	api := newStubBackend()
	tk := &task.Task{ID: "t1"}
	l := NewLinker(api, tk, "", "", nil)

	err := l.EnsureChannel(context.Background())
	var npe *NoParticipantsError
	require.ErrorAs(t, err, &npe)
	assert.Zero(t, api.createCalls)
	assert.Equal(t, StateUnlinked, l.State())
}

func TestSend_FirstMessageCreatesChannel(t *testing.T) {
	api := newStubBackend()
	tk := &task.Task{ID: "t1", AssignedToID: "u2"}
	l := NewLinker(api, tk, "u1", "Alice", nil)
	l.StageAttachment(task.Attachment{ID: "a1", Name: "plan.pdf"})

	require.NoError(t, l.Send(context.Background(), "hello", nil))

	assert.Equal(t, 1, api.createCalls)
	assert.Equal(t, "hello", api.lastPost.Content)
	assert.Equal(t, "Alice", api.lastPost.AuthorName)
	require.Len(t, api.lastPost.Attachments, 1)
	assert.Empty(t, l.StagedAttachments(), "staging cleared on success")
	require.Len(t, l.Messages(), 1, "list reloaded after send")
}

func TestSend_EditInPlace(t *testing.T) {
	api := newStubBackend()
	tk := &task.Task{ID: "t1", ChatID: "c1", AssignedToID: "u2"}
	api.messages["c1"] = []Message{{ID: "m1", ChatID: "c1", Content: "tpyo"}}
	l := NewLinker(api, tk, "u1", "Alice", nil)
	l.SetEditing("m1")

	require.NoError(t, l.Send(context.Background(), "typo", nil))

	assert.Equal(t, "m1", api.lastEditID)
	assert.Empty(t, l.Editing(), "edit marker cleared")
	require.Len(t, l.Messages(), 1)
	assert.Equal(t, "typo", l.Messages()[0].Content)
	assert.Zero(t, api.createCalls, "editing never provisions a channel")
}

func TestDeleteMessage_Reloads(t *testing.T) {
	api := newStubBackend()
	tk := &task.Task{ID: "t1", ChatID: "c1"}
	api.messages["c1"] = []Message{{ID: "m1"}, {ID: "m2"}}
	l := NewLinker(api, tk, "u1", "Alice", nil)

	require.NoError(t, l.DeleteMessage(context.Background(), "m1"))
	require.Len(t, l.Messages(), 1)
	assert.Equal(t, "m2", l.Messages()[0].ID)
}

func TestReload_DiscardsStaleResponse(t *testing.T) {
	api := newStubBackend()
	tk := &task.Task{ID: "t1", ChatID: "c1"}
	api.messages["c1"] = []Message{{ID: "m1", Content: "old"}}
	l := NewLinker(api, tk, "u1", "Alice", nil)

	// While the first reload is in flight, a newer reload completes with
	// fresher data. The first response must then be dropped.
	api.onListMessages = func() {
		api.messages["c1"] = []Message{{ID: "m1", Content: "old"}, {ID: "m2", Content: "new"}}
		require.NoError(t, l.Reload(context.Background()))
	}

	require.NoError(t, l.Reload(context.Background()))
	require.Len(t, l.Messages(), 2, "stale single-message response discarded")
}

func TestTeardown(t *testing.T) {
	api := newStubBackend()
	tk := &task.Task{ID: "t1", ChatID: "c1"}
	api.messages["c1"] = []Message{{ID: "m1"}}
	l := NewLinker(api, tk, "u1", "Alice", nil)
	require.NoError(t, l.Reload(context.Background()))

	require.NoError(t, l.Teardown(context.Background()))
	assert.Equal(t, 1, api.deleteCalls)
	assert.Empty(t, tk.ChatID)
	assert.Empty(t, l.Messages())
	assert.Equal(t, StateUnlinked, l.State())

	// Idempotent once unlinked.
	require.NoError(t, l.Teardown(context.Background()))
	assert.Equal(t, 1, api.deleteCalls)
}
