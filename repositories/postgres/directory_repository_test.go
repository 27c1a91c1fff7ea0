package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/access-gate/repositories"
	"go.uber.org/zap"
)

var membershipColumns = []string{"id", "username", "email", "is_active", "is_superuser", "permissions", "groups"}

func newMockRepository(t *testing.T) (repositories.DirectoryRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewDirectoryRepository(Wrap(db, zap.NewNop()), zap.NewNop()), mock
}

func TestGetMemberships(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta("FROM directory_users u")

	t.Run("loads permissions and groups", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()

		mock.ExpectQuery(query).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(membershipColumns).
				AddRow(id.String(), "alice", "alice@example.com", true, false, "{articles.edit,reports.view}", "{editors}"))

		m, err := repo.GetMemberships(ctx, id)
		require.NoError(t, err)

		assert.Equal(t, id, m.UserID)
		assert.Equal(t, "alice", m.Username)
		assert.True(t, m.Active)
		assert.False(t, m.Superuser)
		assert.Equal(t, []string{"articles.edit", "reports.view"}, m.Permissions)
		assert.Equal(t, []string{"editors"}, m.Groups)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("user without memberships", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()

		mock.ExpectQuery(query).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(membershipColumns).
				AddRow(id.String(), "bob", "", false, false, "{}", "{}"))

		m, err := repo.GetMemberships(ctx, id)
		require.NoError(t, err)

		assert.False(t, m.Active)
		assert.Empty(t, m.Permissions)
		assert.Empty(t, m.Groups)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()

		mock.ExpectQuery(query).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(membershipColumns))

		_, err := repo.GetMemberships(ctx, id)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("query failure", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()

		mock.ExpectQuery(query).WithArgs(id).WillReturnError(errors.New("connection reset"))

		_, err := repo.GetMemberships(ctx, id)
		require.Error(t, err)
		assert.NotErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		assert.NoError(t, repo.HealthCheck(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping fails", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectPing().WillReturnError(errors.New("refused"))

		assert.Error(t, repo.HealthCheck(context.Background()))
	})
}

func TestInitSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS directory_users").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Wrap(db, nil).InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
