package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orgpulse/orgpulse/internal/cli/auth"
)

// ErrUnauthorized is returned when the server answers 401
var ErrUnauthorized = errors.New("unauthorized")

// APIError is returned for non-2xx responses other than 401
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Body)
}

// Client represents an HTTP client for the orgpulse API
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenStore
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenStore sets where session tokens are loaded from and saved to
func WithTokenStore(store auth.TokenStore) Option {
	return func(c *Client) {
		c.tokens = store
	}
}

// New creates a new API client for the server at baseURL (e.g. "https://orgpulse.example.com")
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens: auth.Default,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server base URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CurrentSession fetches the current user and their projects
func (c *Client) CurrentSession(ctx context.Context) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.do(ctx, http.MethodGet, PathCurrentUser, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates with username and password and stores the returned token
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, http.MethodPost, PathLogin, LoginRequest{
		Username: username,
		Password: password,
	}, &out)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, fmt.Errorf("login failed: invalid username or password")
		}
		return nil, fmt.Errorf("login failed: %w", err)
	}

	if err := c.tokens.SaveToken(c.baseURL, out.Token); err != nil {
		return nil, err
	}

	return &out, nil
}

// SaveToken stores a token obtained out of band, e.g. after a browser SSO login
func (c *Client) SaveToken(token string) error {
	return c.tokens.SaveToken(c.baseURL, token)
}

// DeleteToken forgets the stored token for this server
func (c *Client) DeleteToken() error {
	return c.tokens.DeleteToken(c.baseURL)
}

// Logout invalidates the session on the server. The local token is removed
// even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, PathLogout, nil, nil)
	if delErr := c.tokens.DeleteToken(c.baseURL); delErr != nil && err == nil {
		err = delErr
	}
	return err
}

// FetchSSOMethods fetches SSO methods described by q
func (c *Client) FetchSSOMethods(ctx context.Context, q SSOQuery) ([]SSOMethod, error) {
	var out SSOMethodsResponse
	if err := c.do(ctx, http.MethodGet, q.Path, nil, &out); err != nil {
		return nil, err
	}
	return out.Methods, nil
}

// SSOMethods fetches the available SSO methods
func (c *Client) SSOMethods(ctx context.Context) ([]SSOMethod, error) {
	return c.FetchSSOMethods(ctx, DefaultSSOQuery())
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// A missing token just means the request goes out anonymous
	if token, err := c.tokens.LoadToken(c.baseURL); err == nil && token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
