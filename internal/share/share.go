// Package share manages access grants for tasks: capability records
// granting viewer or editor access to a link, a chat, a department or an
// individual user.
package share

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Permission is the access level carried by a grant.
type Permission string

const (
	PermissionViewer Permission = "viewer"
	PermissionEditor Permission = "editor"
)

// ValidPermissions returns all valid permission values.
func ValidPermissions() []Permission {
	return []Permission{PermissionViewer, PermissionEditor}
}

// IsValidPermission returns true if the permission is a valid value.
func IsValidPermission(p Permission) bool {
	switch p {
	case PermissionViewer, PermissionEditor:
		return true
	default:
		return false
	}
}

// TargetKind selects what a grant is addressed to. Exactly one of the
// companion fields on Target is meaningful per kind; a link grant
// carries none.
type TargetKind string

const (
	TargetLink       TargetKind = "link"
	TargetChat       TargetKind = "chat"
	TargetDepartment TargetKind = "department"
	TargetUser       TargetKind = "user"
)

// ValidTargetKinds returns all valid target kinds.
func ValidTargetKinds() []TargetKind {
	return []TargetKind{TargetLink, TargetChat, TargetDepartment, TargetUser}
}

// IsValidTargetKind returns true if the kind is a valid value.
func IsValidTargetKind(k TargetKind) bool {
	switch k {
	case TargetLink, TargetChat, TargetDepartment, TargetUser:
		return true
	default:
		return false
	}
}

// Target addresses a grant.
type Target struct {
	Kind       TargetKind
	ChatID     string
	Department string
	UserID     string
}

// GrantMetadata is the wire shape of a grant's target.
type GrantMetadata struct {
	ShareTarget TargetKind `json:"shareTarget"`
	ChatID      string     `json:"chatId,omitempty"`
	Department  string     `json:"department,omitempty"`
	UserID      string     `json:"userId,omitempty"`
}

// Grant is one share link as stored by the backend.
type Grant struct {
	ID         string        `json:"id"`
	Token      string        `json:"token,omitempty"`
	Permission Permission    `json:"permission"`
	CreatedBy  string        `json:"createdBy,omitempty"`
	CreatedAt  time.Time     `json:"createdAt,omitempty"`
	ExpiresAt  *time.Time    `json:"expiresAt,omitempty"`
	IsActive   bool          `json:"isActive"`
	Metadata   GrantMetadata `json:"metadata"`
}

// CreateRequest is the payload for creating a grant.
type CreateRequest struct {
	ResourceType string        `json:"resourceType"`
	ResourceID   string        `json:"resourceId"`
	Permission   Permission    `json:"permission"`
	CreatedBy    string        `json:"createdBy,omitempty"`
	Metadata     GrantMetadata `json:"metadata"`
}

// ResourceTypeTask is the resource type for task-scoped grants.
const ResourceTypeTask = "task"

// Backend is the slice of the share-link API the manager needs.
type Backend interface {
	ListShareLinks(ctx context.Context, resourceType, resourceID string) ([]Grant, error)
	CreateShareLink(ctx context.Context, req CreateRequest) (*Grant, error)
	DeleteShareLink(ctx context.Context, linkID string) error
}

// NameResolver resolves ids to display labels for Describe.
type NameResolver interface {
	DisplayName(id string) string
}

// ValidationError reports a grant target missing its required companion
// field. It is raised before any backend request is issued.
type ValidationError struct {
	Kind    TargetKind
	Missing string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("share target %q requires %s", e.Kind, e.Missing)
}

// Manager creates, lists and revokes grants for a single task. The
// in-memory list mirrors the backend newest-first; failed requests leave
// it untouched.
type Manager struct {
	api       Backend
	log       *slog.Logger
	createdBy string
	taskID    string
	grants    []Grant
}

// NewManager builds a manager scoped to one task. createdBy is the
// session user recorded on new grants.
func NewManager(api Backend, taskID, createdBy string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{api: api, log: logger, taskID: taskID, createdBy: createdBy}
}

// Grants returns the current in-memory list, newest first.
func (m *Manager) Grants() []Grant {
	return m.grants
}

// validateTarget checks the companion-field invariant for a target.
func validateTarget(target Target) error {
	switch target.Kind {
	case TargetLink:
		return nil
	case TargetChat:
		if target.ChatID == "" {
			return &ValidationError{Kind: TargetChat, Missing: "chatId"}
		}
	case TargetDepartment:
		if target.Department == "" {
			return &ValidationError{Kind: TargetDepartment, Missing: "department"}
		}
	case TargetUser:
		if target.UserID == "" {
			return &ValidationError{Kind: TargetUser, Missing: "userId"}
		}
	default:
		return &ValidationError{Kind: target.Kind, Missing: "a known share target"}
	}
	return nil
}

// Create validates the target, issues the backend request and prepends
// the returned grant. Duplicate grants to the same target are allowed;
// the manager does not deduplicate.
func (m *Manager) Create(ctx context.Context, permission Permission, target Target) (*Grant, error) {
	if err := validateTarget(target); err != nil {
		return nil, err
	}
	if !IsValidPermission(permission) {
		return nil, fmt.Errorf("unknown permission %q", permission)
	}

	grant, err := m.api.CreateShareLink(ctx, CreateRequest{
		ResourceType: ResourceTypeTask,
		ResourceID:   m.taskID,
		Permission:   permission,
		CreatedBy:    m.createdBy,
		Metadata: GrantMetadata{
			ShareTarget: target.Kind,
			ChatID:      target.ChatID,
			Department:  target.Department,
			UserID:      target.UserID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create share link: %w", err)
	}

	m.grants = append([]Grant{*grant}, m.grants...)
	return grant, nil
}

// List fetches the task's grants. Filtering happens server-side by
// resource type and id; the client applies none of its own.
func (m *Manager) List(ctx context.Context) ([]Grant, error) {
	grants, err := m.api.ListShareLinks(ctx, ResourceTypeTask, m.taskID)
	if err != nil {
		return nil, fmt.Errorf("list share links: %w", err)
	}
	m.grants = grants
	return grants, nil
}

// Revoke deletes a grant. The in-memory list is only updated after the
// backend confirms; there is no optimistic removal.
func (m *Manager) Revoke(ctx context.Context, grantID string) error {
	if err := m.api.DeleteShareLink(ctx, grantID); err != nil {
		return fmt.Errorf("revoke share link %s: %w", grantID, err)
	}
	kept := m.grants[:0:0]
	for _, g := range m.grants {
		if g.ID != grantID {
			kept = append(kept, g)
		}
	}
	m.grants = kept
	m.log.Debug("share link revoked", "grant", grantID, "task", m.taskID)
	return nil
}

// Describe renders a human-readable label for a grant's target.
func Describe(grant Grant, resolver NameResolver) string {
	meta := grant.Metadata
	switch meta.ShareTarget {
	case TargetChat:
		if resolver != nil {
			return resolver.DisplayName(meta.ChatID)
		}
		return meta.ChatID
	case TargetDepartment:
		return meta.Department
	case TargetUser:
		if resolver != nil {
			return resolver.DisplayName(meta.UserID)
		}
		return meta.UserID
	default:
		return "Link"
	}
}
