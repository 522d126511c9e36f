package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dimitrije/shipyard/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIBaseURL = "https://api.github.com"

type GitHubProvider struct {
	config     *oauth2.Config
	apiBaseURL string
}

func NewGitHubProvider(cfg config.GitHubConfig) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"user:email", "read:user"},
			Endpoint:     github.Endpoint,
		},
		apiBaseURL: githubAPIBaseURL,
	}
}

func (p *GitHubProvider) GetConsentURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (*UserInfo, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	client := p.config.Client(ctx, token)

	userResp, err := client.Get(p.apiBaseURL + "/user")
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer userResp.Body.Close()

	if userResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api returned status %d", userResp.StatusCode)
	}

	var ghUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}

	if err := json.NewDecoder(userResp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if ghUser.ID <= 0 || ghUser.Login == "" {
		return nil, fmt.Errorf("github user response is missing id or login")
	}

	email := ghUser.Email
	if email == "" {
		// A missing address is not fatal; the account may hide every email.
		email, _ = p.getPrimaryEmail(client)
	}

	return &UserInfo{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     email,
		Name:      ghUser.Name,
		AvatarURL: ghUser.AvatarURL,
	}, nil
}

func (p *GitHubProvider) getPrimaryEmail(client *http.Client) (string, error) {
	resp, err := client.Get(p.apiBaseURL + "/user/emails")
	if err != nil {
		return "", fmt.Errorf("failed to get user emails: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github api returned status %d", resp.StatusCode)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", fmt.Errorf("failed to decode emails: %w", err)
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}

	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}

	return "", fmt.Errorf("no verified email found")
}
