package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/shipyard/internal/database"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/dimitrije/shipyard/internal/oauth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrUserNotFound = errors.New("user not found")

type UserService struct {
	db *database.DB
}

func NewUserService(db *database.DB) *UserService {
	return &UserService{db: db}
}

const userColumns = `id, github_id, login, name, email, avatar_url, role, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.GitHubID, &user.Login, &user.Name, &user.Email,
		&user.AvatarURL, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindOrCreateFromGitHub upserts the user keyed on the immutable GitHub id,
// refreshing the mutable profile fields.
func (s *UserService) FindOrCreateFromGitHub(ctx context.Context, info *oauth.UserInfo) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		INSERT INTO users (github_id, login, name, email, avatar_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (github_id) DO UPDATE SET
			login = EXCLUDED.login,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = NOW()
		RETURNING `+userColumns,
		info.GitHubID, info.Login, info.Name, info.Email, nullableString(info.AvatarURL),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
