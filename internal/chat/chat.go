// Package chat links tasks to their discussion channels and mediates
// message traffic against the backend chat API.
package chat

import (
	"time"

	"github.com/taskdeck/taskdeck/internal/task"
)

// Channel is a discussion channel as stored by the backend.
type Channel struct {
	ID             string    `json:"id"`
	Title          string    `json:"title,omitempty"`
	IsGroup        bool      `json:"isGroup,omitempty"`
	ParticipantIDs []string  `json:"participantIds,omitempty"`
	CreatorID      string    `json:"creatorId,omitempty"`
	TodoID         string    `json:"todoId,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
}

// Message is one message of a channel.
type Message struct {
	ID          string            `json:"id"`
	ChatID      string            `json:"chatId,omitempty"`
	AuthorID    string            `json:"authorId,omitempty"`
	AuthorName  string            `json:"authorName,omitempty"`
	Content     string            `json:"content"`
	Mentions    []string          `json:"mentions,omitempty"`
	Attachments []task.Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time         `json:"createdAt,omitempty"`
	EditedAt    *time.Time        `json:"editedAt,omitempty"`
}

// CreateChannelRequest is the payload for provisioning a channel.
type CreateChannelRequest struct {
	IsGroup        bool     `json:"isGroup"`
	ParticipantIDs []string `json:"participantIds"`
	Title          string   `json:"title,omitempty"`
	CreatorID      string   `json:"creatorId,omitempty"`
	TodoID         string   `json:"todoId,omitempty"`
}

// PostMessageRequest is the payload for posting a new message.
type PostMessageRequest struct {
	AuthorID    string            `json:"authorId"`
	AuthorName  string            `json:"authorName,omitempty"`
	Content     string            `json:"content"`
	Mentions    []string          `json:"mentions,omitempty"`
	Attachments []task.Attachment `json:"attachments,omitempty"`
}
