package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/shipyard/internal/database"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrTenantNotFound = errors.New("tenant not found")

type TenantService struct {
	db *database.DB
}

func NewTenantService(db *database.DB) *TenantService {
	return &TenantService{db: db}
}

// TenantGrant gives UserID a role on the tenant owning Installation's
// account, and the same role on the installation itself.
type TenantGrant struct {
	UserID       uuid.UUID
	Installation *models.Installation
	Role         models.Role
}

// GrantAccess commits the tenant, the tenant role and the installation role
// in one transaction. Each write is an upsert, so a retried grant converges
// on the same rows.
func (s *TenantService) GrantAccess(ctx context.Context, g TenantGrant) (*models.Tenant, error) {
	inst := g.Installation
	tenant := models.Tenant{
		ID:           models.TenantIDFor(inst.AccountType, inst.AccountID),
		Kind:         inst.AccountType,
		DisplayName:  inst.AccountLogin,
		AccountLogin: inst.AccountLogin,
	}
	tenant.DatabaseName = models.TenantDatabaseName(tenant.ID)

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO tenants (id, kind, display_name, account_login, database_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			account_login = EXCLUDED.account_login,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, tenant.ID, tenant.Kind, tenant.DisplayName, tenant.AccountLogin, tenant.DatabaseName).
		Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert tenant: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_tenant_roles (user_id, tenant_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, tenant_id) DO UPDATE SET
			role = EXCLUDED.role,
			updated_at = NOW()
	`, g.UserID, tenant.ID, g.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert tenant role: %w", err)
	}

	if err := upsertUserInstallationRole(ctx, tx, g.UserID, inst.InstallationID, inst.AccountLogin, g.Role); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &tenant, nil
}

func (s *TenantService) GetByID(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, kind, display_name, account_login, database_name, created_at, updated_at
		FROM tenants WHERE id = $1
	`, tenantID).Scan(&t.ID, &t.Kind, &t.DisplayName, &t.AccountLogin, &t.DatabaseName, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

func (s *TenantService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.TenantMembership, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT t.id, t.kind, t.display_name, t.account_login, t.database_name, t.created_at, t.updated_at, r.role
		FROM tenants t
		JOIN user_tenant_roles r ON r.tenant_id = t.id
		WHERE r.user_id = $1
		ORDER BY t.display_name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	memberships := []models.TenantMembership{}
	for rows.Next() {
		var m models.TenantMembership
		if err := rows.Scan(
			&m.Tenant.ID, &m.Tenant.Kind, &m.Tenant.DisplayName, &m.Tenant.AccountLogin,
			&m.Tenant.DatabaseName, &m.Tenant.CreatedAt, &m.Tenant.UpdatedAt, &m.Role,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// GetRole reads the caller's current role on tenantID. The gateway calls it
// before minting every cross-service token.
func (s *TenantService) GetRole(ctx context.Context, userID uuid.UUID, tenantID string) (models.Role, bool, error) {
	var role models.Role
	err := s.db.Pool.QueryRow(ctx, `
		SELECT role FROM user_tenant_roles
		WHERE user_id = $1 AND tenant_id = $2
	`, userID, tenantID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get tenant role: %w", err)
	}
	return role, true, nil
}

func (s *TenantService) ListMembers(ctx context.Context, tenantID string) ([]models.UserTenantRole, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT r.user_id, r.tenant_id, r.role, r.created_at, r.updated_at,
		       u.github_id, u.login, u.name, u.avatar_url
		FROM user_tenant_roles r
		JOIN users u ON u.id = r.user_id
		WHERE r.tenant_id = $1
		ORDER BY u.login
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []models.UserTenantRole{}
	for rows.Next() {
		var (
			m    models.UserTenantRole
			user models.User
		)
		if err := rows.Scan(
			&m.UserID, &m.TenantID, &m.Role, &m.CreatedAt, &m.UpdatedAt,
			&user.GitHubID, &user.Login, &user.Name, &user.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		user.ID = m.UserID
		m.User = &user
		members = append(members, m)
	}
	return members, rows.Err()
}
