// Package dataclient calls the data service on behalf of a gateway user.
package dataclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dimitrije/shipyard/pkg/dto"
	"github.com/hashicorp/go-retryablehttp"
)

// StatusError is a non-2xx answer from the data service.
type StatusError struct {
	Status int
	Body   dto.ErrorResponse
}

func (e *StatusError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("data service returned %d: %s", e.Status, e.Body.Message)
	}
	return fmt.Sprintf("data service returned %d", e.Status)
}

type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// New builds a client that retries connection failures and 5xx answers a
// few times. 4xx answers are returned immediately.
func New(baseURL string, timeout time.Duration) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = timeout
	rc.RetryMax = 2
	rc.RetryWaitMin = 50 * time.Millisecond
	rc.RetryWaitMax = 500 * time.Millisecond
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
	}
}

func (c *Client) Context(ctx context.Context, token string) (*dto.ContextResponse, error) {
	var out dto.ContextResponse
	if err := c.get(ctx, "/internal/v1/context", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Members(ctx context.Context, token string) (*dto.MemberListResponse, error) {
	var out dto.MemberListResponse
	if err := c.get(ctx, "/internal/v1/tenant/members", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Installations(ctx context.Context, token string) (*dto.InstallationListResponse, error) {
	var out dto.InstallationListResponse
	if err := c.get(ctx, "/internal/v1/tenant/installations", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path, token string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build data service request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call data service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read data service response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Status: resp.StatusCode}
		if json.Unmarshal(body, &statusErr.Body) != nil || statusErr.Body.Message == "" {
			statusErr.Body.Message = strings.TrimSpace(string(body))
		}
		return statusErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode data service response: %w", err)
	}
	return nil
}
