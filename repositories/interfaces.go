// Package repositories declares the read-only user directory used to enrich
// authenticated principals with stored permissions and group memberships.
package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the directory has no record for a user
var ErrNotFound = errors.New("user not found in directory")

// Memberships is the directory record of a single user
type Memberships struct {
	UserID    uuid.UUID
	Username  string
	Email     string
	Active    bool
	Superuser bool
	// Permissions holds direct grants and grants inherited through groups
	Permissions []string
	Groups      []string
}

// DirectoryRepository loads user memberships
type DirectoryRepository interface {
	// GetMemberships returns the memberships of the user with the given id.
	// Returns ErrNotFound when the user does not exist.
	GetMemberships(ctx context.Context, userID uuid.UUID) (*Memberships, error)

	// HealthCheck verifies the directory backend is reachable
	HealthCheck(ctx context.Context) error
}
