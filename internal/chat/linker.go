package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskdeck/taskdeck/internal/task"
)

// State is the linker's position in the Unlinked -> Resolving -> Linked
// machine.
type State string

const (
	StateUnlinked  State = "unlinked"
	StateResolving State = "resolving"
	StateLinked    State = "linked"
)

// Backend is the slice of the chat API the linker needs.
type Backend interface {
	ListChannels(ctx context.Context, userID string) ([]Channel, error)
	CreateChannel(ctx context.Context, req CreateChannelRequest) (*Channel, error)
	DeleteChannel(ctx context.Context, chatID string) error
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
	PostMessage(ctx context.Context, chatID string, req PostMessageRequest) (*Message, error)
	EditMessage(ctx context.Context, messageID, content string) (*Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
}

// NoParticipantsError is returned when channel creation cannot find a
// single participant on the task.
type NoParticipantsError struct {
	TaskID string
}

func (e *NoParticipantsError) Error() string {
	return fmt.Sprintf("task %s has no participants for a discussion channel", e.TaskID)
}

// Linker lazily provisions the discussion channel for one task and
// mediates sends, edits, deletes and reloads against it. Channel
// creation is deferred to the first message; opening the discussion view
// only reconciles against channels created out-of-band.
type Linker struct {
	api  Backend
	log  *slog.Logger
	task *task.Task

	userID   string
	userName string

	state            State
	messages         []Message
	editingMessageID string
	staged           []task.Attachment

	// reloadGen guards full-replacement message reads: a reload response
	// is applied only if no newer reload was issued meanwhile.
	reloadGen uint64
}

// NewLinker builds a linker for one task. userID/userName identify the
// current session user.
func NewLinker(api Backend, t *task.Task, userID, userName string, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	state := StateUnlinked
	if t.ChatID != "" {
		state = StateLinked
	}
	return &Linker{api: api, log: logger, task: t, userID: userID, userName: userName, state: state}
}

// State returns the current linker state.
func (l *Linker) State() State { return l.state }

// Messages returns the last loaded message list.
func (l *Linker) Messages() []Message { return l.messages }

// SetEditing marks a message id for update-in-place on the next Send.
func (l *Linker) SetEditing(messageID string) { l.editingMessageID = messageID }

// ClearEditing cancels an in-progress edit.
func (l *Linker) ClearEditing() { l.editingMessageID = "" }

// Editing returns the message id an edit is in progress for, if any.
func (l *Linker) Editing() string { return l.editingMessageID }

// StageAttachment queues an uploaded attachment for the next send.
func (l *Linker) StageAttachment(a task.Attachment) {
	l.staged = append(l.staged, a)
}

// StagedAttachments returns the attachments queued for the next send.
func (l *Linker) StagedAttachments() []task.Attachment { return l.staged }

// ResolveOrCreate runs when the discussion view opens. A cached chat id
// links immediately; otherwise the backend is queried for a channel
// already associated with this task. No channel is created here.
func (l *Linker) ResolveOrCreate(ctx context.Context) error {
	if l.task.ChatID != "" {
		l.state = StateLinked
		return nil
	}

	l.state = StateResolving
	channels, err := l.api.ListChannels(ctx, l.userID)
	if err != nil {
		l.state = StateUnlinked
		return fmt.Errorf("resolve channel for task %s: %w", l.task.ID, err)
	}

	for _, ch := range channels {
		if ch.TodoID == l.task.ID {
			l.task.ChatID = ch.ID
			l.state = StateLinked
			l.log.Debug("discussion channel discovered", "task", l.task.ID, "chat", ch.ID)
			return nil
		}
	}

	l.state = StateUnlinked
	return nil
}

// participants computes the deduplicated participant set for a new
// channel: current user, the customer who raised the task, the
// delegator, and the executor(s).
func (l *Linker) participants() []string {
	candidates := []string{l.userID, l.task.AssignedByID, l.task.DelegatedByID}
	if len(l.task.AssignedToIDs) > 0 {
		candidates = append(candidates, l.task.AssignedToIDs...)
	} else if l.task.AssignedToID != "" {
		candidates = append(candidates, l.task.AssignedToID)
	}

	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, id := range candidates {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// EnsureChannel creates the channel on first message when none exists
// yet, persisting the new id onto the task record.
func (l *Linker) EnsureChannel(ctx context.Context) error {
	if l.task.ChatID != "" {
		l.state = StateLinked
		return nil
	}

	ids := l.participants()
	if len(ids) == 0 {
		return &NoParticipantsError{TaskID: l.task.ID}
	}

	ch, err := l.api.CreateChannel(ctx, CreateChannelRequest{
		IsGroup:        len(ids) > 2,
		ParticipantIDs: ids,
		Title:          l.task.Title,
		CreatorID:      l.userID,
		TodoID:         l.task.ID,
	})
	if err != nil {
		return fmt.Errorf("create channel for task %s: %w", l.task.ID, err)
	}

	l.task.ChatID = ch.ID
	l.state = StateLinked
	l.log.Info("discussion channel created", "task", l.task.ID, "chat", ch.ID, "participants", len(ids))
	return nil
}

// Send posts the composed content. When an edit is in progress the
// content replaces that message in place instead of creating a new one.
// Either path clears the edit marker and the staged attachments on
// success and reloads the full message list, which keeps ordering
// authoritative.
func (l *Linker) Send(ctx context.Context, content string, mentions []string) error {
	if l.editingMessageID != "" {
		if _, err := l.api.EditMessage(ctx, l.editingMessageID, content); err != nil {
			return fmt.Errorf("edit message %s: %w", l.editingMessageID, err)
		}
	} else {
		if err := l.EnsureChannel(ctx); err != nil {
			return err
		}
		_, err := l.api.PostMessage(ctx, l.task.ChatID, PostMessageRequest{
			AuthorID:    l.userID,
			AuthorName:  l.userName,
			Content:     content,
			Mentions:    mentions,
			Attachments: l.staged,
		})
		if err != nil {
			return fmt.Errorf("post message to chat %s: %w", l.task.ChatID, err)
		}
	}

	l.editingMessageID = ""
	l.staged = nil
	return l.Reload(ctx)
}

// DeleteMessage removes a message and reloads the list on success.
func (l *Linker) DeleteMessage(ctx context.Context, messageID string) error {
	if err := l.api.DeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return l.Reload(ctx)
}

// Reload replaces the message list from the backend. Responses of
// superseded reloads are discarded so a late completion cannot clobber a
// newer list.
func (l *Linker) Reload(ctx context.Context) error {
	if l.task.ChatID == "" {
		l.messages = nil
		return nil
	}

	l.reloadGen++
	gen := l.reloadGen

	msgs, err := l.api.ListMessages(ctx, l.task.ChatID)
	if err != nil {
		return fmt.Errorf("load messages for chat %s: %w", l.task.ChatID, err)
	}
	if gen != l.reloadGen {
		l.log.Debug("discarding stale message reload", "chat", l.task.ChatID, "gen", gen)
		return nil
	}

	l.messages = msgs
	return nil
}

// Teardown deletes the linked channel and clears the task's chat id.
// Called when the task completes or is archived: a completed or archived
// task must never retain a live discussion link.
func (l *Linker) Teardown(ctx context.Context) error {
	if l.task.ChatID == "" {
		return nil
	}
	if err := l.api.DeleteChannel(ctx, l.task.ChatID); err != nil {
		return fmt.Errorf("delete channel %s: %w", l.task.ChatID, err)
	}
	l.log.Info("discussion channel removed", "task", l.task.ID, "chat", l.task.ChatID)
	l.task.ChatID = ""
	l.messages = nil
	l.state = StateUnlinked
	return nil
}
