package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgpulse/orgpulse/internal/cli/client"
)

type fakeSSOAPI struct {
	mu      sync.Mutex
	queries []client.SSOQuery
	methods []client.SSOMethod
	err     error
}

func (f *fakeSSOAPI) FetchSSOMethods(ctx context.Context, q client.SSOQuery) ([]client.SSOMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.methods, f.err
}

func (f *fakeSSOAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func TestSSOLookup_Methods(t *testing.T) {
	api := &fakeSSOAPI{methods: []client.SSOMethod{{Name: "corp", URL: "https://cas.example.com"}}}
	l := NewSSOLookup(context.Background(), api)
	defer l.Close()

	require.NoError(t, l.Wait(waitCtx(t)))
	assert.False(t, l.Loading())
	assert.Equal(t, api.methods, l.Methods())
	assert.Equal(t, []client.SSOQuery{client.DefaultSSOQuery()}, api.queries)
}

func TestSSOLookup_FailureYieldsEmpty(t *testing.T) {
	api := &fakeSSOAPI{err: errors.New("unreachable")}
	l := NewSSOLookup(context.Background(), api)
	defer l.Close()

	assert.Error(t, l.Wait(waitCtx(t)))
	methods := l.Methods()
	require.NotNil(t, methods)
	assert.Empty(t, methods)
}

func TestSSOLookup_WatchRefetchesOnlyOnChange(t *testing.T) {
	api := &fakeSSOAPI{}
	var mu sync.Mutex
	query := client.DefaultSSOQuery()

	l := NewSSOLookup(context.Background(), api, WithSSOQuery(func() client.SSOQuery {
		mu.Lock()
		defer mu.Unlock()
		return query
	}))
	defer l.Close()
	require.NoError(t, l.Wait(waitCtx(t)))

	assert.False(t, l.Watch())
	require.NoError(t, l.Wait(waitCtx(t)))
	assert.Equal(t, 1, api.Calls())

	mu.Lock()
	query = client.SSOQuery{Path: "/api/v2/sso/methods"}
	mu.Unlock()

	assert.True(t, l.Watch())
	require.NoError(t, l.Wait(waitCtx(t)))
	assert.Equal(t, 2, api.Calls())
	assert.Equal(t, "/api/v2/sso/methods", api.queries[1].Path)
}

type slowSSOAPI struct {
	started chan client.SSOQuery
}

func (a *slowSSOAPI) FetchSSOMethods(ctx context.Context, q client.SSOQuery) ([]client.SSOMethod, error) {
	a.started <- q
	switch q.Path {
	case "/slow":
		<-ctx.Done()
		return nil, ctx.Err()
	case "/fail":
		return nil, errors.New("boom")
	default:
		return []client.SSOMethod{{Name: "corp"}}, nil
	}
}

func TestSSOLookup_WaitReportsItsOwnFetch(t *testing.T) {
	api := &slowSSOAPI{started: make(chan client.SSOQuery, 4)}
	var mu sync.Mutex
	query := client.SSOQuery{Path: "/fail"}
	setQuery := func(path string) {
		mu.Lock()
		query = client.SSOQuery{Path: path}
		mu.Unlock()
	}

	l := NewSSOLookup(context.Background(), api, WithSSOQuery(func() client.SSOQuery {
		mu.Lock()
		defer mu.Unlock()
		return query
	}))
	defer l.Close()
	assert.EqualError(t, l.Wait(waitCtx(t)), "boom")

	setQuery("/slow")
	require.True(t, l.Watch())
	slow := l.pending()
	<-api.started
	<-api.started

	// Replacing the slow fetch cancels it; the newer fetch succeeds
	setQuery(client.DefaultSSOQuery().Path)
	require.True(t, l.Watch())
	require.NoError(t, l.Wait(waitCtx(t)))

	assert.ErrorIs(t, slow.wait(waitCtx(t)), context.Canceled)
	assert.Equal(t, []client.SSOMethod{{Name: "corp"}}, l.Methods())
}
