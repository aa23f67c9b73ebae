package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgpulse/orgpulse/internal/cli/auth"
)

// mockTokenStore is a simple in-memory token store for testing
type mockTokenStore struct {
	tokens    map[string]string
	deleteErr error
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{tokens: make(map[string]string)}
}

func (m *mockTokenStore) SaveToken(server, token string) error {
	m.tokens[server] = token
	return nil
}

func (m *mockTokenStore) LoadToken(server string) (string, error) {
	token, ok := m.tokens[server]
	if !ok {
		return "", auth.ErrNotAuthenticated
	}
	return token, nil
}

func (m *mockTokenStore) DeleteToken(server string) error {
	delete(m.tokens, server)
	return m.deleteErr
}

func TestCurrentSession_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathCurrentUser, r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"user":     map[string]any{"username": "a", "email": "a@x.com", "avatar": ""},
			"projects": []map[string]any{{"id": 1, "name": "one"}, {"id": 2, "name": "two"}},
		})
	}))
	defer srv.Close()

	tokens := newMockTokenStore()
	tokens.tokens[srv.URL] = "tok-1"

	c := New(srv.URL+"/", WithTokenStore(tokens))
	resp, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, "a", resp.User.Username)
	assert.Equal(t, []Project{{ID: 1, Name: "one"}, {ID: 2, Name: "two"}}, resp.Projects)
}

func TestCurrentSession_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "Unauthorized"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithTokenStore(newMockTokenStore()))
	_, err := c.CurrentSession(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCurrentSession_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down\n"))
	}))
	defer srv.Close()

	c := New(srv.URL, WithTokenStore(newMockTokenStore()))
	_, err := c.CurrentSession(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Body)
}

func TestLogin_StoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathLogin, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req LoginRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Username != "alice" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(LoginResponse{
			Token: "tok-alice",
			User:  User{Username: "alice", Email: "alice@example.com"},
		})
	}))
	defer srv.Close()

	tokens := newMockTokenStore()
	c := New(srv.URL, WithTokenStore(tokens))

	resp, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "tok-alice", tokens.tokens[srv.URL])

	_, err = c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid username or password")
}

func TestLogout_AlwaysDeletesToken(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "server accepts", status: http.StatusNoContent},
		{name: "server fails", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, PathLogout, r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			tokens := newMockTokenStore()
			tokens.tokens[srv.URL] = "tok-1"

			err := New(srv.URL, WithTokenStore(tokens)).Logout(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NotContains(t, tokens.tokens, srv.URL)
		})
	}
}

func TestSSOMethods(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathSSOMethods, r.URL.Path)
		w.Write([]byte(`{"methods":[{"name":"Okta","url":"https://okta.example.com/login"}]}`))
	}))
	defer srv.Close()

	methods, err := New(srv.URL, WithTokenStore(newMockTokenStore())).SSOMethods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []SSOMethod{{Name: "Okta", URL: "https://okta.example.com/login"}}, methods)
}
