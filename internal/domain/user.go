package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleGuest Role = "GUEST"
	RoleHost  Role = "HOST"
	RoleAdmin Role = "ADMIN"
)

// User is the minimal profile the booking core needs; registration and
// authentication live upstream.
type User struct {
	ID        uuid.UUID
	Role      Role
	FirstName string
	LastName  string
	Email     string
	CreatedAt time.Time
}

func (u User) FullName() string {
	s := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if s == "" {
		return "No name"
	}
	return s
}
