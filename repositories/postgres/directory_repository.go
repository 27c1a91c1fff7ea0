package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/access-gate/repositories"
	"go.uber.org/zap"
)

const membershipsQuery = `
	SELECT u.id, u.username, u.email, u.is_active, u.is_superuser,
		ARRAY(
			SELECT p.codename
			FROM directory_user_permissions up
			JOIN directory_permissions p ON p.id = up.permission_id
			WHERE up.user_id = u.id
			UNION
			SELECT p.codename
			FROM directory_user_groups ug
			JOIN directory_group_permissions gp ON gp.group_id = ug.group_id
			JOIN directory_permissions p ON p.id = gp.permission_id
			WHERE ug.user_id = u.id
		) AS permissions,
		ARRAY(
			SELECT g.name
			FROM directory_user_groups ug
			JOIN directory_groups g ON g.id = ug.group_id
			WHERE ug.user_id = u.id
			ORDER BY g.name
		) AS groups
	FROM directory_users u
	WHERE u.id = $1
`

// DirectoryRepository implements repositories.DirectoryRepository
type DirectoryRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *DB, logger *zap.Logger) repositories.DirectoryRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// GetMemberships loads a user with permissions and groups in one round trip
func (r *DirectoryRepository) GetMemberships(ctx context.Context, userID uuid.UUID) (*repositories.Memberships, error) {
	m := &repositories.Memberships{}

	err := r.db.QueryRowContext(ctx, membershipsQuery, userID).Scan(
		&m.UserID,
		&m.Username,
		&m.Email,
		&m.Active,
		&m.Superuser,
		pq.Array(&m.Permissions),
		pq.Array(&m.Groups),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repositories.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}

	r.logger.Debug("memberships loaded",
		zap.String("user_id", userID.String()),
		zap.Int("permissions", len(m.Permissions)),
		zap.Int("groups", len(m.Groups)))
	return m, nil
}

// HealthCheck verifies the database is reachable
func (r *DirectoryRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
