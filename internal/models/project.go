package models

import "time"

type Project struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Color      string    `json:"color" yaml:"color"`
	IsFavorite bool      `json:"is_favorite" yaml:"is_favorite"`
	IsArchived bool      `json:"is_archived" yaml:"is_archived"`
	IsShared   bool      `json:"is_shared" yaml:"is_shared"`
	SortOrder  int64     `json:"sort_order" yaml:"sort_order"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

type Section struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	SortOrder int64     `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type Label struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Color     string `json:"color" yaml:"color"`
	SortOrder int64  `json:"sort_order" yaml:"sort_order"`
}

// Filter is a saved query over tasks (e.g. "priority:4 & overdue").
type Filter struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Query     string `json:"query"`
	Color     string `json:"color"`
	SortOrder int64  `json:"sort_order"`
}

type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
