package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/access-gate/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return Wrap(db, logger), nil
}

// Wrap adapts an already opened pool
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// InitSchema creates the directory tables when they are missing
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS directory_users (
			id UUID PRIMARY KEY,
			username VARCHAR(150) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT true,
			is_superuser BOOLEAN NOT NULL DEFAULT false
		);

		CREATE TABLE IF NOT EXISTS directory_groups (
			id SERIAL PRIMARY KEY,
			name VARCHAR(150) NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS directory_permissions (
			id SERIAL PRIMARY KEY,
			codename VARCHAR(255) NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS directory_user_groups (
			user_id UUID NOT NULL REFERENCES directory_users(id) ON DELETE CASCADE,
			group_id INTEGER NOT NULL REFERENCES directory_groups(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, group_id)
		);

		CREATE TABLE IF NOT EXISTS directory_user_permissions (
			user_id UUID NOT NULL REFERENCES directory_users(id) ON DELETE CASCADE,
			permission_id INTEGER NOT NULL REFERENCES directory_permissions(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, permission_id)
		);

		CREATE TABLE IF NOT EXISTS directory_group_permissions (
			group_id INTEGER NOT NULL REFERENCES directory_groups(id) ON DELETE CASCADE,
			permission_id INTEGER NOT NULL REFERENCES directory_permissions(id) ON DELETE CASCADE,
			PRIMARY KEY (group_id, permission_id)
		);

		CREATE INDEX IF NOT EXISTS idx_directory_user_groups_user ON directory_user_groups(user_id);
		CREATE INDEX IF NOT EXISTS idx_directory_user_permissions_user ON directory_user_permissions(user_id);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("directory schema initialized")
	return nil
}
