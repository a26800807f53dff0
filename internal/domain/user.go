package domain

import "context"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User identity is supplied by the external identity layer; the engine only
// reads it.
type User struct {
	ID    int
	Email string
	Name  string
	Role  UserRole
}

type UserRepository interface {
	GetByID(ctx context.Context, id int) (*User, error)
}
