package model

import "time"

// Role values stored in users.role.  Hosts may create rooms; listeners may
// only queue videos.
const (
    RoleHost     = "HOST"
    RoleListener = "LISTENER"
)

// User represents an account that can queue videos or host rooms.
type User struct {
    ID           uint64    `json:"id"`
    Email        string    `json:"email"`
    PasswordHash string    `json:"-"`
    Role         string    `json:"role"`
    IsActive     bool      `json:"is_active"`
    CreatedAt    time.Time `json:"created_at"`
    UpdatedAt    time.Time `json:"updated_at"`
}
