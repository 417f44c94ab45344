package model

// Member roles.
const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Role   string `json:"role"`

	// IsCurrentUser is local-only: each device decides which member is "me"
	// against its own identity. Excluded from JSON so it can never be
	// replicated as global truth.
	IsCurrentUser bool `json:"-"`
}
