package models

import (
	"strings"
	"time"
)

// Task mirrors a server-side task. ID may be a temporary local id
// (local-<uuid>) until the create has been confirmed by the server.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	SectionID   string     `json:"section_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    int        `json:"priority"`
	Labels      []string   `json:"labels,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	SortOrder   int64      `json:"sort_order"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasLocalID reports whether the task still carries a temporary local id.
func (t *Task) HasLocalID() bool {
	return strings.HasPrefix(t.ID, LocalIDPrefix)
}

// IsOverdue reports whether the task has a due date in the past and is not
// completed.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Due != nil && t.Due.Before(now) && !t.Completed
}
