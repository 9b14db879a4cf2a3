// Package task provides the task model for taskdeck: statuses, stage
// metadata, version history, and the normalization applied to records
// loaded from the backend.
package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the workflow state of a task or stage.
type Status string

const (
	// StatusTodo is the legacy initial state. It is normalized to
	// StatusPending when a record is loaded from the backend.
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusPending    Status = "pending"
	StatusReview     Status = "review"
	StatusCancelled  Status = "cancelled"
	StatusStuck      Status = "stuck"
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{
		StatusTodo, StatusInProgress, StatusPending,
		StatusReview, StatusCancelled, StatusStuck,
	}
}

// IsValidStatus returns true if the status is a valid status value.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusPending,
		StatusReview, StatusCancelled, StatusStuck:
		return true
	default:
		return false
	}
}

// Priority represents the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriorities returns all valid priority values.
func ValidPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

// IsValidPriority returns true if the priority is a valid priority value.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Recurrence represents how often a task repeats.
type Recurrence string

const (
	RecurrenceOnce      Recurrence = "once"
	RecurrenceDaily     Recurrence = "daily"
	RecurrenceWeekly    Recurrence = "weekly"
	RecurrenceBiweekly  Recurrence = "biweekly"
	RecurrenceMonthly   Recurrence = "monthly"
	RecurrenceQuarterly Recurrence = "quarterly"
	RecurrenceYearly    Recurrence = "yearly"
)

// ValidRecurrences returns all valid recurrence values.
func ValidRecurrences() []Recurrence {
	return []Recurrence{
		RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly,
		RecurrenceMonthly, RecurrenceQuarterly, RecurrenceYearly,
	}
}

// IsValidRecurrence returns true if the recurrence is a valid value.
func IsValidRecurrence(r Recurrence) bool {
	switch r {
	case RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly,
		RecurrenceMonthly, RecurrenceQuarterly, RecurrenceYearly:
		return true
	default:
		return false
	}
}

// StageTab is one entry of the ordered stage list shown when multi-stage
// mode is enabled.
type StageTab struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// StageMeta holds the per-stage state of a task. Status defaults to
// pending when absent. AssigneeID is a pointer: a stage may carry a
// human-readable assignee name with no resolvable id.
type StageMeta struct {
	Status           Status  `json:"status,omitempty"`
	AssigneeID       *string `json:"assigneeId,omitempty"`
	AssigneeName     string  `json:"assigneeName,omitempty"`
	DueDate          string  `json:"dueDate,omitempty"`
	ReviewComment    string  `json:"reviewComment,omitempty"`
	Description      string  `json:"description,omitempty"`
	AssigneeResponse string  `json:"assigneeResponse,omitempty"`
}

// Metadata is the legacy storage location carried on older records. Its
// stageMeta entries are read-merged into the authoritative view but never
// written back; chat id variants are hoisted out during normalization.
type Metadata struct {
	StageMeta map[string]StageMeta `json:"stageMeta,omitempty"`
}

// Attachment describes a file uploaded for a task or a message.
type Attachment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Type       string    `json:"type,omitempty"`
	Size       int64     `json:"size,omitempty"`
	UploadedAt time.Time `json:"uploadedAt,omitempty"`
}

// ChecklistItem is one line of a task checklist.
type ChecklistItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done,omitempty"`
}

// Task is the central record. The backend owns the canonical copy; the
// draft controller works on clones of it.
type Task struct {
	ID string `json:"id"`

	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	AssigneeResponse string `json:"assigneeResponse,omitempty"`

	Status        Status   `json:"status,omitempty"`
	Priority      Priority `json:"priority,omitempty"`
	ReviewComment string   `json:"reviewComment,omitempty"`

	DueDate       string     `json:"dueDate,omitempty"`
	Recurrence    Recurrence `json:"recurrence,omitempty"`
	AddToCalendar bool       `json:"addToCalendar,omitempty"`

	AssignedByID    string   `json:"assignedById,omitempty"`
	AssignedBy      string   `json:"assignedBy,omitempty"`
	DelegatedByID   string   `json:"delegatedById,omitempty"`
	DelegatedBy     string   `json:"delegatedBy,omitempty"`
	AssignedToID    string   `json:"assignedToId,omitempty"`
	AssignedToName  string   `json:"assignedToName,omitempty"`
	AssignedToIDs   []string `json:"assignedToIds,omitempty"`
	AssignedToNames []string `json:"assignedToNames,omitempty"`

	StagesEnabled            bool                 `json:"stagesEnabled,omitempty"`
	TechnicalSpecTabs        []StageTab           `json:"technicalSpecTabs,omitempty"`
	StageDefaultAssigneeID   *string              `json:"stageDefaultAssigneeId,omitempty"`
	StageDefaultAssigneeName string               `json:"stageDefaultAssigneeName,omitempty"`
	StageMeta                map[string]StageMeta `json:"stageMeta,omitempty"`

	ChatID string `json:"chatId,omitempty"`

	VersionHistory []VersionEntry `json:"versionHistory,omitempty"`

	Attachments []Attachment    `json:"attachments,omitempty"`
	Checklist   []ChecklistItem `json:"checklist,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	ListID      string          `json:"listId,omitempty"`
	CategoryID  string          `json:"categoryId,omitempty"`

	Archived  bool `json:"archived,omitempty"`
	Completed bool `json:"completed,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`

	Metadata *Metadata `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the task via a JSON round trip.
func (t *Task) Clone() *Task {
	data, err := json.Marshal(t)
	if err != nil {
		// The model is plain data; marshal cannot fail for valid records.
		panic(fmt.Sprintf("clone task %s: %v", t.ID, err))
	}
	var out Task
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("clone task %s: %v", t.ID, err))
	}
	return &out
}

// ClearDueDate removes the due date and resets the fields that depend on
// it: recurrence falls back to once and the calendar flag is dropped.
func (t *Task) ClearDueDate() {
	t.DueDate = ""
	t.Recurrence = RecurrenceOnce
	t.AddToCalendar = false
}

// ValidationError reports a task field that violates an invariant.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task field %s: %s", e.Field, e.Message)
}

// Validate checks cross-field invariants before a save.
func (t *Task) Validate() error {
	if t.Recurrence != "" && t.Recurrence != RecurrenceOnce && t.DueDate == "" {
		return &ValidationError{
			Field:   "recurrence",
			Message: fmt.Sprintf("recurrence %q requires a due date", t.Recurrence),
		}
	}
	if t.Status != "" && !IsValidStatus(t.Status) {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", t.Status)}
	}
	if t.Priority != "" && !IsValidPriority(t.Priority) {
		return &ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", t.Priority)}
	}
	if t.Recurrence != "" && !IsValidRecurrence(t.Recurrence) {
		return &ValidationError{Field: "recurrence", Message: fmt.Sprintf("unknown recurrence %q", t.Recurrence)}
	}
	return nil
}
