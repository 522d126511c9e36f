package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/shipyard/internal/database"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/internal/webhook"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrInstallationNotFound = errors.New("installation not found")

// execer is satisfied by both the pool and an open transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type InstallationService struct {
	db *database.DB
}

func NewInstallationService(db *database.DB) *InstallationService {
	return &InstallationService{db: db}
}

const installationColumns = `installation_id, account_id, account_login, account_type, installer_github_id,
	permissions, repository_count, status, installed_at, created_at, updated_at`

func scanInstallation(row pgx.Row) (*models.Installation, error) {
	var inst models.Installation
	err := row.Scan(
		&inst.InstallationID, &inst.AccountID, &inst.AccountLogin, &inst.AccountType, &inst.InstallerGitHubID,
		&inst.Permissions, &inst.RepositoryCount, &inst.Status, &inst.InstalledAt, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// ApplyEvent records a verified installation webhook. An uninstall removes
// the installation together with its grants; every other action upserts.
func (s *InstallationService) ApplyEvent(ctx context.Context, ev *webhook.InstallationEvent) error {
	if ev.Action == webhook.ActionDeleted {
		return s.Delete(ctx, ev.Installation.ID)
	}
	inst := ev.ToInstallation(time.Now())
	return s.UpsertInstallation(ctx, &inst, ev.Action == webhook.ActionUnsuspend)
}

// UpsertInstallation writes inst keyed on its installation id. The first
// known installer and the original install time are never overwritten, so
// redelivery only refreshes updated_at. A suspended installation stays
// suspended unless resume is set.
func (s *InstallationService) UpsertInstallation(ctx context.Context, inst *models.Installation, resume bool) error {
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO installations (
			installation_id, account_id, account_login, account_type, installer_github_id,
			permissions, repository_count, status, installed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (installation_id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			account_login = EXCLUDED.account_login,
			account_type = EXCLUDED.account_type,
			installer_github_id = COALESCE(installations.installer_github_id, EXCLUDED.installer_github_id),
			permissions = EXCLUDED.permissions,
			repository_count = CASE
				WHEN EXCLUDED.repository_count > 0 THEN EXCLUDED.repository_count
				ELSE installations.repository_count
			END,
			status = CASE
				WHEN installations.status = $10 AND NOT $11::boolean THEN installations.status
				ELSE EXCLUDED.status
			END,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`,
		inst.InstallationID, inst.AccountID, inst.AccountLogin, inst.AccountType, inst.InstallerGitHubID,
		[]byte(inst.Permissions), inst.RepositoryCount, inst.Status, inst.InstalledAt,
		models.InstallationSuspended, resume,
	).Scan(&inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert installation: %w", err)
	}
	return nil
}

func (s *InstallationService) Delete(ctx context.Context, installationID int64) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_installation_roles WHERE installation_id = $1`, installationID); err != nil {
		return fmt.Errorf("failed to delete installation roles: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM installations WHERE installation_id = $1`, installationID); err != nil {
		return fmt.Errorf("failed to delete installation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *InstallationService) GetByID(ctx context.Context, installationID int64) (*models.Installation, error) {
	inst, err := scanInstallation(s.db.Pool.QueryRow(ctx, `
		SELECT `+installationColumns+`
		FROM installations WHERE installation_id = $1
	`, installationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInstallationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get installation: %w", err)
	}
	return inst, nil
}

func (s *InstallationService) ListByAccountLogin(ctx context.Context, login string) ([]models.Installation, error) {
	return s.list(ctx, `WHERE account_login = $1`, login)
}

// ListByInstaller answers "which installations did this GitHub user create".
func (s *InstallationService) ListByInstaller(ctx context.Context, githubID int64) ([]models.Installation, error) {
	return s.list(ctx, `WHERE installer_github_id = $1`, githubID)
}

func (s *InstallationService) ListByAccount(ctx context.Context, kind models.AccountType, accountID int64) ([]models.Installation, error) {
	return s.list(ctx, `WHERE account_type = $1 AND account_id = $2`, kind, accountID)
}

func (s *InstallationService) list(ctx context.Context, where string, args ...any) ([]models.Installation, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+installationColumns+`
		FROM installations `+where+`
		ORDER BY installed_at DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	defer rows.Close()

	installations := []models.Installation{}
	for rows.Next() {
		inst, err := scanInstallation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installation: %w", err)
		}
		installations = append(installations, *inst)
	}
	return installations, rows.Err()
}

func (s *InstallationService) UpsertUserInstallationRole(ctx context.Context, userID uuid.UUID, installationID int64, orgName string, role models.Role) error {
	return upsertUserInstallationRole(ctx, s.db.Pool, userID, installationID, orgName, role)
}

func upsertUserInstallationRole(ctx context.Context, q execer, userID uuid.UUID, installationID int64, orgName string, role models.Role) error {
	_, err := q.Exec(ctx, `
		INSERT INTO user_installation_roles (user_id, installation_id, org_name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, installation_id) DO UPDATE SET
			org_name = EXCLUDED.org_name,
			role = EXCLUDED.role,
			updated_at = NOW()
	`, userID, installationID, orgName, role)
	if err != nil {
		return fmt.Errorf("failed to upsert installation role: %w", err)
	}
	return nil
}

// FindInstallationRole reports the role userID holds on installationID, if
// any.
func (s *InstallationService) FindInstallationRole(ctx context.Context, userID uuid.UUID, installationID int64) (models.Role, bool, error) {
	var role models.Role
	err := s.db.Pool.QueryRow(ctx, `
		SELECT role FROM user_installation_roles
		WHERE user_id = $1 AND installation_id = $2
	`, userID, installationID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to find installation role: %w", err)
	}
	return role, true, nil
}
