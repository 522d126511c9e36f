package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
)

// UserInfo is the GitHub profile of the user who completed the login.
type UserInfo struct {
	GitHubID  int64
	Login     string
	Email     string
	Name      string
	AvatarURL string
}

type Provider interface {
	GetConsentURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*UserInfo, error)
}

func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
