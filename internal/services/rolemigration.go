package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/shipyard/internal/database"
	"github.com/dimitrije/shipyard/internal/models"
	"go.uber.org/zap"
)

var ErrLegacyRolesRemain = errors.New("legacy roles remain after migration")

// roleTables hold a role column that may still carry pre-unification values.
var roleTables = []string{"user_tenant_roles", "user_installation_roles", "users"}

// snapshotTable is reported alongside roleTables; its role lives inside the
// user_snapshot document.
const snapshotTable = "sessions"

type MigrationResult struct {
	Modified map[string]int64
}

func (r *MigrationResult) Total() int64 {
	var n int64
	for _, v := range r.Modified {
		n += v
	}
	return n
}

type RoleMigrationService struct {
	db *database.DB
}

func NewRoleMigrationService(db *database.DB) *RoleMigrationService {
	return &RoleMigrationService{db: db}
}

// MigrateLegacyRoles rewrites CONTRIBUTOR to MEMBER and READER to VIEWER in
// one transaction, then checks that no legacy value is left. A second run
// modifies nothing.
func (s *RoleMigrationService) MigrateLegacyRoles(ctx context.Context) (*MigrationResult, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result := &MigrationResult{Modified: make(map[string]int64, len(roleTables))}
	for _, table := range roleTables {
		tag, err := tx.Exec(ctx, `
			UPDATE `+table+` SET
				role = CASE role WHEN $1 THEN $2 WHEN $3 THEN $4 ELSE role END,
				updated_at = NOW()
			WHERE role IN ($1, $3)
		`, models.LegacyRoleContributor, models.RoleMember, models.LegacyRoleReader, models.RoleViewer)
		if err != nil {
			return nil, fmt.Errorf("failed to migrate roles in %s: %w", table, err)
		}
		result.Modified[table] = tag.RowsAffected()
	}

	tag, err := tx.Exec(ctx, `
		UPDATE sessions SET
			user_snapshot = jsonb_set(
				user_snapshot, '{role}',
				to_jsonb(CASE user_snapshot->>'role' WHEN $1 THEN $2::text WHEN $3 THEN $4::text END)
			),
			updated_at = NOW()
		WHERE user_snapshot->>'role' IN ($1, $3)
	`, models.LegacyRoleContributor, models.RoleMember, models.LegacyRoleReader, models.RoleViewer)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate roles in %s: %w", snapshotTable, err)
	}
	result.Modified[snapshotTable] = tag.RowsAffected()

	var remaining int64
	err = tx.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM user_tenant_roles WHERE role IN ($1, $2)) +
			(SELECT COUNT(*) FROM user_installation_roles WHERE role IN ($1, $2)) +
			(SELECT COUNT(*) FROM users WHERE role IN ($1, $2)) +
			(SELECT COUNT(*) FROM sessions WHERE user_snapshot->>'role' IN ($1, $2))
	`, models.LegacyRoleContributor, models.LegacyRoleReader).Scan(&remaining)
	if err != nil {
		return nil, fmt.Errorf("failed to verify role migration: %w", err)
	}
	if remaining > 0 {
		return nil, fmt.Errorf("%w: %d rows", ErrLegacyRolesRemain, remaining)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// PrepareDatabase brings the schema up to date and then rewrites legacy
// roles. Every service calls it before serving, so no role read can observe
// a pre-unification value.
func PrepareDatabase(ctx context.Context, db *database.DB, log *zap.Logger) (*MigrationResult, error) {
	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	result, err := NewRoleMigrationService(db).MigrateLegacyRoles(ctx)
	if err != nil {
		return nil, err
	}
	if result.Total() > 0 {
		log.Info("legacy roles migrated", zap.Any("modified", result.Modified))
	}
	return result, nil
}
