package services

import (
	"fmt"
	"time"

	"github.com/dimitrije/shipyard/internal/authz"
	"github.com/dimitrije/shipyard/internal/metrics"
	"github.com/dimitrije/shipyard/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CrossServiceIssuer   = "shipyard-gateway"
	CrossServiceAudience = "shipyard-dataservice"
)

// Identity is what the gateway asserts about a caller when it mints a token.
type Identity struct {
	UserID     string
	Username   string
	AvatarURL  string
	Login      string
	TenantID   string
	TenantRole models.Role
}

type CrossServiceClaims struct {
	Username   string      `json:"username"`
	Avatar     string      `json:"avatar,omitempty"`
	Login      string      `json:"login,omitempty"`
	TenantID   string      `json:"tenant_id"`
	TenantRole models.Role `json:"tenant_role"`
	jwt.RegisteredClaims
}

// AuthzContext converts verified claims into the data service's view of the
// caller. Claims are taken as-is.
func (c *CrossServiceClaims) AuthzContext() *authz.Context {
	return &authz.Context{
		UserID:     c.Subject,
		Username:   c.Username,
		AvatarURL:  c.Avatar,
		Login:      c.Login,
		TenantID:   c.TenantID,
		TenantRole: c.TenantRole,
	}
}

type CrossServiceTokenService struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

func NewCrossServiceTokenService(secret string, ttl time.Duration) *CrossServiceTokenService {
	return &CrossServiceTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(CrossServiceIssuer),
			jwt.WithAudience(CrossServiceAudience),
		),
	}
}

func (s *CrossServiceTokenService) TTL() time.Duration {
	return s.ttl
}

func (s *CrossServiceTokenService) Issue(id Identity) (string, error) {
	if id.UserID == "" {
		return "", fmt.Errorf("cross-service token requires a user id")
	}

	now := time.Now()
	claims := CrossServiceClaims{
		Username:   id.Username,
		Avatar:     id.AvatarURL,
		Login:      id.Login,
		TenantID:   id.TenantID,
		TenantRole: id.TenantRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    CrossServiceIssuer,
			Audience:  jwt.ClaimStrings{CrossServiceAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign cross-service token: %w", err)
	}

	metrics.RecordTokenIssued()
	return signed, nil
}

// Verify reports false for any token that is malformed, not signed with the
// shared secret using HS256, addressed elsewhere, or expired. iat is
// carried but never compared with the local clock.
func (s *CrossServiceTokenService) Verify(tokenString string) (*CrossServiceClaims, bool) {
	if tokenString == "" {
		return nil, false
	}

	token, err := s.parser.ParseWithClaims(tokenString, &CrossServiceClaims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		metrics.RecordTokenRejected()
		return nil, false
	}

	claims, ok := token.Claims.(*CrossServiceClaims)
	if !ok || claims.Subject == "" {
		metrics.RecordTokenRejected()
		return nil, false
	}

	return claims, true
}
