package services

import (
	"context"
	"testing"
	"time"

	"github.com/dimitrije/shipyard/internal/database"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/internal/oauth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{
	"id", "github_id", "login", "name", "email", "avatar_url", "role", "created_at", "updated_at",
}

func setupUserService(t *testing.T) (*UserService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	db := &database.DB{Pool: mock}
	return NewUserService(db), mock
}

func TestUserService_FindOrCreateFromGitHub(t *testing.T) {
	svc, mock := setupUserService(t)
	ctx := context.Background()
	info := &oauth.UserInfo{
		GitHubID:  42,
		Login:     "octocat",
		Name:      "Octo Cat",
		Email:     "octo@example.com",
		AvatarURL: "https://example.com/avatar.png",
	}
	userID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows(userRowColumns).
		AddRow(userID, int64(42), "octocat", "Octo Cat", "octo@example.com", &info.AvatarURL, models.RoleMember, now, now)

	mock.ExpectQuery(`INSERT INTO users .+ ON CONFLICT \(github_id\) DO UPDATE`).
		WithArgs(int64(42), "octocat", "Octo Cat", "octo@example.com", &info.AvatarURL).
		WillReturnRows(rows)

	user, err := svc.FindOrCreateFromGitHub(ctx, info)

	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, int64(42), user.GitHubID)
	assert.Equal(t, "octocat", user.Login)
	assert.Equal(t, models.RoleMember, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_FindOrCreateFromGitHub_NoAvatar(t *testing.T) {
	svc, mock := setupUserService(t)
	info := &oauth.UserInfo{GitHubID: 7, Login: "quiet"}
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(int64(7), "quiet", "", "", (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(userRowColumns).
			AddRow(uuid.New(), int64(7), "quiet", "", "", nil, models.RoleMember, now, now))

	user, err := svc.FindOrCreateFromGitHub(context.Background(), info)

	require.NoError(t, err)
	assert.Nil(t, user.AvatarURL)
	assert.Equal(t, "quiet", user.DisplayName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_GetByID(t *testing.T) {
	svc, mock := setupUserService(t)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(userRowColumns).
			AddRow(userID, int64(42), "octocat", "Octo Cat", "", nil, models.RoleAdmin, now, now))

	user, err := svc.GetByID(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_GetByID_NotFound(t *testing.T) {
	svc, mock := setupUserService(t)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(userID).
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.GetByID(context.Background(), userID)

	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
