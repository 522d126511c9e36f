package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/shipyard/internal/database"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/jackc/pgx/v5"
)

var (
	ErrSessionNotFound        = errors.New("session not found or expired")
	ErrOnboardingLinkNotFound = errors.New("onboarding link not found or expired")
)

// SessionService stores sessions and onboarding links under the SHA-256 of
// the opaque values handed to the browser. Raw values never reach the
// database.
type SessionService struct {
	db         *database.DB
	sessionTTL time.Duration
	linkTTL    time.Duration
}

func NewSessionService(db *database.DB, sessionTTL, linkTTL time.Duration) *SessionService {
	return &SessionService{db: db, sessionTTL: sessionTTL, linkTTL: linkTTL}
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func newOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create starts a session for user and returns the cookie value.
func (s *SessionService) Create(ctx context.Context, user *models.User) (string, *models.Session, error) {
	raw, err := newOpaqueToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	snapshot := models.SnapshotUser(user)
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode session user: %w", err)
	}

	session := &models.Session{
		ID:        HashToken(raw),
		User:      snapshot,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}

	err = s.db.Pool.QueryRow(ctx, `
		INSERT INTO sessions (id, user_snapshot, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, session.ID, payload, session.ExpiresAt).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	return raw, session, nil
}

// Get resolves a cookie value to its live session.
func (s *SessionService) Get(ctx context.Context, raw string) (*models.Session, error) {
	if raw == "" {
		return nil, ErrSessionNotFound
	}
	return s.getByID(ctx, HashToken(raw))
}

func (s *SessionService) getByID(ctx context.Context, id string) (*models.Session, error) {
	var (
		session  models.Session
		snapshot []byte
	)
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, user_snapshot, active_tenant_id, expires_at, created_at, updated_at
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()
	`, id).Scan(&session.ID, &snapshot, &session.ActiveTenantID, &session.ExpiresAt, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := json.Unmarshal(snapshot, &session.User); err != nil {
		return nil, fmt.Errorf("failed to decode session user: %w", err)
	}
	return &session, nil
}

func (s *SessionService) SetActiveTenant(ctx context.Context, sessionID, tenantID string) error {
	result, err := s.db.Pool.Exec(ctx, `
		UPDATE sessions SET active_tenant_id = $1, updated_at = NOW()
		WHERE id = $2 AND expires_at > NOW()
	`, tenantID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set active tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SessionService) Destroy(ctx context.Context, sessionID string) error {
	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// CleanupExpired removes expired sessions and onboarding links. Links of a
// removed session go with it through the foreign key.
func (s *SessionService) CleanupExpired(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM onboarding_links WHERE expires_at < NOW()`); err != nil {
		return fmt.Errorf("failed to clean up onboarding links: %w", err)
	}
	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`); err != nil {
		return fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return nil
}

// CreateOnboardingLink ties a fresh onboarding cookie value to sessionID.
func (s *SessionService) CreateOnboardingLink(ctx context.Context, sessionID string) (string, error) {
	raw, err := newOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate onboarding link: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO onboarding_links (link_hash, session_id, expires_at)
		VALUES ($1, $2, $3)
	`, HashToken(raw), sessionID, time.Now().Add(s.linkTTL))
	if err != nil {
		return "", fmt.Errorf("failed to create onboarding link: %w", err)
	}

	return raw, nil
}

// ResolveOnboardingLink returns the live session behind an onboarding
// cookie value. Both the link and the session must be unexpired.
func (s *SessionService) ResolveOnboardingLink(ctx context.Context, raw string) (*models.Session, error) {
	if raw == "" {
		return nil, ErrOnboardingLinkNotFound
	}

	var sessionID string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT session_id FROM onboarding_links
		WHERE link_hash = $1 AND expires_at > NOW()
	`, HashToken(raw)).Scan(&sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOnboardingLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve onboarding link: %w", err)
	}

	session, err := s.getByID(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrOnboardingLinkNotFound
	}
	return session, err
}

func (s *SessionService) ConsumeOnboardingLink(ctx context.Context, raw string) error {
	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM onboarding_links WHERE link_hash = $1`, HashToken(raw)); err != nil {
		return fmt.Errorf("failed to consume onboarding link: %w", err)
	}
	return nil
}
