package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dimitrije/shipyard/internal/database"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRoleMigrationService(t *testing.T) (*RoleMigrationService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewRoleMigrationService(&database.DB{Pool: mock}), mock
}

func expectRoleRewrite(mock pgxmock.PgxPoolIface, table string, affected int64) {
	mock.ExpectExec(`UPDATE ` + table + ` SET`).
		WithArgs(models.LegacyRoleContributor, models.RoleMember, models.LegacyRoleReader, models.RoleViewer).
		WillReturnResult(pgxmock.NewResult("UPDATE", affected))
}

func expectSnapshotRewrite(mock pgxmock.PgxPoolIface, affected int64) {
	mock.ExpectExec(`UPDATE sessions SET\s+user_snapshot = jsonb_set`).
		WithArgs(models.LegacyRoleContributor, models.RoleMember, models.LegacyRoleReader, models.RoleViewer).
		WillReturnResult(pgxmock.NewResult("UPDATE", affected))
}

func TestRoleMigrationService_MigrateLegacyRoles(t *testing.T) {
	svc, mock := setupRoleMigrationService(t)

	mock.ExpectBegin()
	expectRoleRewrite(mock, "user_tenant_roles", 3)
	expectRoleRewrite(mock, "user_installation_roles", 1)
	expectRoleRewrite(mock, "users", 2)
	expectSnapshotRewrite(mock, 4)
	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT`).
		WithArgs(models.LegacyRoleContributor, models.LegacyRoleReader).
		WillReturnRows(pgxmock.NewRows([]string{"remaining"}).AddRow(int64(0)))
	mock.ExpectCommit()

	result, err := svc.MigrateLegacyRoles(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Modified["user_tenant_roles"])
	assert.Equal(t, int64(4), result.Modified["sessions"])
	assert.Equal(t, int64(10), result.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleMigrationService_SecondRunModifiesNothing(t *testing.T) {
	svc, mock := setupRoleMigrationService(t)

	mock.ExpectBegin()
	for _, table := range roleTables {
		expectRoleRewrite(mock, table, 0)
	}
	expectSnapshotRewrite(mock, 0)
	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT`).
		WithArgs(models.LegacyRoleContributor, models.LegacyRoleReader).
		WillReturnRows(pgxmock.NewRows([]string{"remaining"}).AddRow(int64(0)))
	mock.ExpectCommit()

	result, err := svc.MigrateLegacyRoles(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleMigrationService_FailsLoudlyWhenLegacyRolesRemain(t *testing.T) {
	svc, mock := setupRoleMigrationService(t)

	mock.ExpectBegin()
	for _, table := range roleTables {
		expectRoleRewrite(mock, table, 0)
	}
	expectSnapshotRewrite(mock, 0)
	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT`).
		WithArgs(models.LegacyRoleContributor, models.LegacyRoleReader).
		WillReturnRows(pgxmock.NewRows([]string{"remaining"}).AddRow(int64(2)))
	mock.ExpectRollback()

	_, err := svc.MigrateLegacyRoles(context.Background())

	assert.ErrorIs(t, err, ErrLegacyRolesRemain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleMigrationService_PropagatesStoreErrors(t *testing.T) {
	svc, mock := setupRoleMigrationService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE user_tenant_roles SET`).
		WithArgs(models.LegacyRoleContributor, models.RoleMember, models.LegacyRoleReader, models.RoleViewer).
		WillReturnError(errors.New("connection refused"))
	mock.ExpectRollback()

	_, err := svc.MigrateLegacyRoles(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to migrate roles in user_tenant_roles")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrepareDatabase_StopsWhenSchemaMigrationFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE EXTENSION`).WillReturnError(errors.New("permission denied"))

	_, err = PrepareDatabase(context.Background(), &database.DB{Pool: mock}, zap.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to run migrations")
	assert.NoError(t, mock.ExpectationsWereMet())
}
