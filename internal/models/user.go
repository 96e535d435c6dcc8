package models

import "time"

// User is a Todone account mirrored locally; collaborators on shared
// projects are regular users.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	TimeZone     string    `json:"time_zone,omitempty"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Presence describes a collaborator currently active in a shared project.
// Kept in the presence cache, not in the local store.
type Presence struct {
	UserID    string    `json:"user_id"`
	ProjectID string    `json:"project_id"`
	SeenAt    time.Time `json:"seen_at"`
}
