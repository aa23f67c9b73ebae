package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/orgpulse/orgpulse/internal/cli/auth"
	"github.com/orgpulse/orgpulse/internal/cli/client"
	"github.com/orgpulse/orgpulse/internal/cli/config"
	"github.com/orgpulse/orgpulse/internal/cli/session"
)

// mockTokenStore is a simple in-memory token store for testing
type mockTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{
		tokens: make(map[string]string),
	}
}

func (m *mockTokenStore) SaveToken(server, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[server] = token
	return nil
}

func (m *mockTokenStore) LoadToken(server string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, exists := m.tokens[server]
	if !exists {
		return "", auth.ErrNotAuthenticated
	}
	return token, nil
}

func (m *mockTokenStore) DeleteToken(server string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, server)
	return nil
}

func (m *mockTokenStore) get(server string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[server]
	return token, ok
}

// fakeServer serves the orgpulse endpoints the CLI uses
type fakeServer struct {
	*httptest.Server

	mu          sync.Mutex
	logoutCalls int
	logoutFails bool
	ssoMethods  []client.SSOMethod
}

const validToken = "good-token"

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	f := &fakeServer{
		ssoMethods: []client.SSOMethod{
			{Name: "corp", URL: "https://cas.example.com/login?service="},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(client.PathCurrentUser, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(client.SessionResponse{
			User: &client.User{Username: "alice", Email: "alice@example.com"},
			Projects: []client.Project{
				{ID: 1, Name: "alpha"},
				{ID: 2, Name: "beta"},
			},
		})
	})
	mux.HandleFunc(client.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		var req client.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Username != "alice" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(client.LoginResponse{
			Token: validToken,
			User:  client.User{Username: "alice", Email: "alice@example.com"},
		})
	})
	mux.HandleFunc(client.PathLogout, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logoutCalls++
		fails := f.logoutFails
		f.mu.Unlock()
		if fails {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc(client.PathSSOMethods, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		methods := f.ssoMethods
		f.mu.Unlock()
		json.NewEncoder(w).Encode(client.SSOMethodsResponse{Methods: methods})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)

	return f
}

func (f *fakeServer) setLogoutFails(fails bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutFails = fails
}

func (f *fakeServer) setSSOMethods(methods []client.SSOMethod) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ssoMethods = methods
}

func (f *fakeServer) LogoutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutCalls
}

// recordingNavigator records navigations instead of opening a browser
type recordingNavigator struct {
	mu      sync.Mutex
	pushes  []string
	assigns []string
}

func (n *recordingNavigator) Push(route string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, route)
	return nil
}

func (n *recordingNavigator) Assign(rawURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigns = append(n.assigns, rawURL)
	return nil
}

// testOptions wires a command to the fake server
func testOptions(f *fakeServer, tokens *mockTokenStore, extra ...Option) []Option {
	server := &config.Server{URL: f.URL, Alias: "test-server"}
	opts := []Option{
		WithServer(server),
		WithAPI(client.New(f.URL, client.WithTokenStore(tokens))),
		WithRoute(session.RouteParams{}),
		WithNavigator(&recordingNavigator{}),
	}
	return append(opts, extra...)
}
