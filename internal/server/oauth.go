package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orgpulse/orgpulse/internal/config"
)

// ErrTicketRejected is returned when the identity provider refuses a ticket
var ErrTicketRejected = errors.New("ticket rejected")

// Identity is the user an identity provider vouched for
type Identity struct {
	Username string
	Email    string
}

// TicketValidator exchanges a login ticket for the identity it was issued to
type TicketValidator interface {
	Validate(ctx context.Context, service, ticket string) (*Identity, error)
}

// CASValidator validates tickets against a CAS-style serviceValidate endpoint
type CASValidator struct {
	endpoint   string
	httpClient *http.Client
}

// NewCASValidator creates a validator for cfg. A nil httpClient uses a 10s timeout client.
func NewCASValidator(cfg config.OAuthConfig, httpClient *http.Client) *CASValidator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &CASValidator{
		endpoint:   strings.TrimRight(cfg.Host, "/") + cfg.TokenPath,
		httpClient: httpClient,
	}
}

type casResponse struct {
	ServiceResponse struct {
		AuthenticationSuccess *struct {
			User       string                     `json:"user"`
			Attributes map[string]json.RawMessage `json:"attributes"`
		} `json:"authenticationSuccess"`
		AuthenticationFailure *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"authenticationFailure"`
	} `json:"serviceResponse"`
}

func (v *CASValidator) Validate(ctx context.Context, service, ticket string) (*Identity, error) {
	q := url.Values{}
	q.Set("service", service)
	q.Set("ticket", ticket)
	q.Set("format", "JSON")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("identity provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out casResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode identity provider response: %w", err)
	}

	success := out.ServiceResponse.AuthenticationSuccess
	if success == nil {
		if failure := out.ServiceResponse.AuthenticationFailure; failure != nil {
			return nil, fmt.Errorf("%w: %s %s", ErrTicketRejected, failure.Code, strings.TrimSpace(failure.Description))
		}
		return nil, ErrTicketRejected
	}

	identity := &Identity{
		Username: attribute(success.Attributes, "name"),
		Email:    attribute(success.Attributes, "email"),
	}
	if identity.Username == "" {
		identity.Username = success.User
	}
	if identity.Username == "" {
		return nil, fmt.Errorf("%w: no username in response", ErrTicketRejected)
	}
	return identity, nil
}

// attribute reads a CAS attribute that may be a string or a list of strings
func attribute(attrs map[string]json.RawMessage, name string) string {
	raw, ok := attrs[name]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}
