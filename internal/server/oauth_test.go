package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgpulse/orgpulse/internal/config"
)

func newIdP(t *testing.T, body string, status int) (*httptest.Server, *url.URL) {
	t.Helper()

	got := &url.URL{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = *r.URL
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, got
}

func TestCASValidator(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		want     *Identity
		rejected bool
		fails    bool
	}{
		{
			name: "string attributes",
			body: `{"serviceResponse":{"authenticationSuccess":{"user":"u1","attributes":{"name":"alice","email":"alice@example.com"}}}}`,
			want: &Identity{Username: "alice", Email: "alice@example.com"},
		},
		{
			name: "list attributes",
			body: `{"serviceResponse":{"authenticationSuccess":{"user":"u1","attributes":{"name":["alice"],"email":["a@x.com","b@x.com"]}}}}`,
			want: &Identity{Username: "alice", Email: "a@x.com"},
		},
		{
			name: "falls back to user",
			body: `{"serviceResponse":{"authenticationSuccess":{"user":"bob"}}}`,
			want: &Identity{Username: "bob"},
		},
		{
			name:     "failure",
			body:     `{"serviceResponse":{"authenticationFailure":{"code":"INVALID_TICKET","description":"Ticket not recognized"}}}`,
			rejected: true,
		},
		{
			name:     "empty response",
			body:     `{}`,
			rejected: true,
		},
		{
			name:   "server error",
			body:   `boom`,
			status: http.StatusInternalServerError,
			fails:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := tt.status
			if status == 0 {
				status = http.StatusOK
			}
			idp, got := newIdP(t, tt.body, status)

			v := NewCASValidator(config.OAuthConfig{Host: idp.URL + "/", TokenPath: "/serviceValidate"}, idp.Client())
			identity, err := v.Validate(context.Background(), "http://orgpulse.test/api/v1/users/oauth?redirect=%2F", "ST-1")

			assert.Equal(t, "/serviceValidate", got.Path)
			assert.Equal(t, "ST-1", got.Query().Get("ticket"))
			assert.Equal(t, "JSON", got.Query().Get("format"))
			assert.Equal(t, "http://orgpulse.test/api/v1/users/oauth?redirect=%2F", got.Query().Get("service"))

			switch {
			case tt.rejected:
				assert.ErrorIs(t, err, ErrTicketRejected)
			case tt.fails:
				assert.Error(t, err)
				assert.NotErrorIs(t, err, ErrTicketRejected)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, identity)
			}
		})
	}
}
