package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/orgpulse/orgpulse/internal/cli/client"
)

// SSOAPI fetches single sign-on methods
type SSOAPI interface {
	FetchSSOMethods(ctx context.Context, q client.SSOQuery) ([]client.SSOMethod, error)
}

// SSOOption configures an SSOLookup
type SSOOption func(*SSOLookup)

// WithSSOQuery sets the query descriptor. It is re-evaluated on every Watch.
func WithSSOQuery(query func() client.SSOQuery) SSOOption {
	return func(l *SSOLookup) {
		l.query = query
	}
}

// WithSSOLogger sets the lookup logger
func WithSSOLogger(logger zerolog.Logger) SSOOption {
	return func(l *SSOLookup) {
		l.logger = logger
	}
}

// SSOLookup exposes the available SSO methods. It fetches once on creation and
// again whenever Watch sees a different query descriptor.
type SSOLookup struct {
	api    SSOAPI
	query  func() client.SSOQuery
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	last    client.SSOQuery
	fetched bool
	gen     uint64
	loading bool
	methods []client.SSOMethod
	current *ssoFetch
	stop    context.CancelFunc
}

// ssoFetch is one SSO methods request. err is written once before done is closed.
type ssoFetch struct {
	gen  uint64
	done chan struct{}
	err  error
}

// NewSSOLookup creates a lookup and starts the first fetch
func NewSSOLookup(ctx context.Context, api SSOAPI, opts ...SSOOption) *SSOLookup {
	lookupCtx, cancel := context.WithCancel(ctx)
	l := &SSOLookup{
		api:    api,
		query:  client.DefaultSSOQuery,
		logger: zerolog.Nop(),
		ctx:    lookupCtx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.Watch()

	return l
}

// Watch re-evaluates the query descriptor and refetches if it changed since the
// last fetch. It reports whether a fetch was started.
func (l *SSOLookup) Watch() bool {
	q := l.query()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fetched && q == l.last {
		return false
	}
	if l.stop != nil {
		l.stop()
	}

	l.gen++
	l.last = q
	l.fetched = true
	l.loading = true
	l.current = &ssoFetch{gen: l.gen, done: make(chan struct{})}

	fetchCtx, stop := context.WithCancel(l.ctx)
	l.stop = stop
	go l.fetch(fetchCtx, l.current, q)

	return true
}

func (l *SSOLookup) fetch(ctx context.Context, f *ssoFetch, q client.SSOQuery) {
	defer close(f.done)

	methods, err := l.api.FetchSSOMethods(ctx, q)
	f.err = err

	l.mu.Lock()
	defer l.mu.Unlock()

	if f.gen != l.gen {
		return
	}
	l.loading = false
	if err != nil {
		l.methods = nil
		l.logger.Warn().Err(err).Str("path", q.Path).Msg("Failed to fetch SSO methods")
		return
	}
	l.methods = append([]client.SSOMethod(nil), methods...)
	l.logger.Debug().Int("count", len(methods)).Msg("SSO methods loaded")
}

// Wait blocks until the latest fetch at the time of the call settled and
// returns that fetch's error
func (l *SSOLookup) Wait(ctx context.Context) error {
	return l.pending().wait(ctx)
}

func (l *SSOLookup) pending() *ssoFetch {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (f *ssoFetch) wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loading reports whether a fetch is outstanding
func (l *SSOLookup) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Methods returns the SSO methods, never nil
func (l *SSOLookup) Methods() []client.SSOMethod {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]client.SSOMethod, len(l.methods))
	copy(out, l.methods)
	return out
}

// Close cancels any outstanding fetch
func (l *SSOLookup) Close() {
	l.cancel()
}
