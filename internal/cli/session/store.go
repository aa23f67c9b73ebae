// Package session holds the client-side view of "who is logged in": the current
// user, the projects they belong to, the active project, SSO method discovery and
// the login redirect. State lives in an explicit Store owned by the caller.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/orgpulse/orgpulse/internal/cli/client"
)

// ErrStoreClosed is returned by requests issued after Close
var ErrStoreClosed = errors.New("session store closed")

// API is the part of the orgpulse API the store depends on
type API interface {
	CurrentSession(ctx context.Context) (*client.SessionResponse, error)
	Logout(ctx context.Context) error
}

// Request is a handle to one current-session fetch
type Request struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}

	// Written once before done is closed
	snapshot Snapshot
	err      error
}

// Done is closed once the request settled
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Generation is the reload counter value this request was issued with
func (r *Request) Generation() uint64 {
	return r.gen
}

// Wait blocks until the request settles or ctx is done
func (r *Request) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-r.done:
		return r.snapshot, r.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func settledRequest(err error) *Request {
	r := &Request{cancel: func() {}, done: make(chan struct{}), err: err}
	close(r.done)
	return r
}

// Option configures a Store
type Option func(*Store)

// WithRoute sets where the active project id is read from
func WithRoute(route Route) Option {
	return func(s *Store) {
		s.route = route
	}
}

// WithNavigator sets the navigator used by Logout
func WithNavigator(nav Navigator) Option {
	return func(s *Store) {
		s.nav = nav
	}
}

// WithLoginRedirect sets the OAuth redirect configuration
func WithLoginRedirect(cfg RedirectConfig) Option {
	return func(s *Store) {
		s.redirect = cfg
	}
}

// WithLogger sets the store logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is the single source of truth for the current session.
//
// At most one current-session fetch is tracked at a time. Reload always starts a
// new one and cancels the previous; only the most recently issued request may
// write the snapshot, so a slow stale response never overwrites a newer one.
type Store struct {
	api      API
	route    Route
	nav      Navigator
	redirect RedirectConfig
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// transitionMu serializes transitions with their notifications so observers
	// see views in the order the state changed.
	transitionMu sync.Mutex

	mu        sync.Mutex
	state     State
	snapshot  Snapshot
	gen       uint64
	req       *Request
	observers map[uint64]func(View)
	nextObs   uint64
	closed    bool
}

// NewStore creates a store and immediately starts loading the current session.
// ctx bounds the lifetime of every request the store issues.
func NewStore(ctx context.Context, api API, opts ...Option) *Store {
	storeCtx, cancel := context.WithCancel(ctx)
	s := &Store{
		api:       api,
		route:     RouteParams(nil),
		nav:       noopNavigator{},
		logger:    zerolog.Nop(),
		ctx:       storeCtx,
		cancel:    cancel,
		observers: make(map[uint64]func(View)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.load()

	return s
}

// Reload issues a fresh current-session fetch and returns its handle.
// A request that is still outstanding is cancelled and its result discarded.
func (s *Store) Reload() *Request {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return settledRequest(ErrStoreClosed)
	}
	req, reqCtx := s.beginLocked()
	view, observers := s.viewLocked(), s.observersLocked()
	s.mu.Unlock()

	notify(observers, view)
	go s.run(reqCtx, req)

	return req
}

// GetOrLoad returns the result of the tracked request, starting one only if
// none was ever issued. It blocks until that request settles or ctx is done.
func (s *Store) GetOrLoad(ctx context.Context) (Snapshot, error) {
	return s.load().Wait(ctx)
}

// load returns the tracked request, issuing the first one if needed
func (s *Store) load() *Request {
	s.mu.Lock()
	req := s.req
	closed := s.closed
	s.mu.Unlock()

	if req != nil {
		return req
	}
	if closed {
		return settledRequest(ErrStoreClosed)
	}

	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.Lock()
	// Another caller may have started the first request meanwhile
	if s.req != nil {
		req := s.req
		s.mu.Unlock()
		return req
	}
	if s.closed {
		s.mu.Unlock()
		return settledRequest(ErrStoreClosed)
	}
	req, reqCtx := s.beginLocked()
	view, observers := s.viewLocked(), s.observersLocked()
	s.mu.Unlock()

	notify(observers, view)
	go s.run(reqCtx, req)

	return req
}

// Logout ends the server session, reloads the now anonymous session and
// always redirects to the login route, even when the server call failed.
// The logout error, if any, is returned after the redirect.
func (s *Store) Logout(ctx context.Context) error {
	logoutErr := s.api.Logout(ctx)
	if logoutErr != nil {
		s.logger.Warn().Err(logoutErr).Msg("Server logout failed, continuing with local logout")
		logoutErr = fmt.Errorf("logout failed: %w", logoutErr)
	}

	if _, err := s.Reload().Wait(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("Session reload after logout failed")
	}

	navErr := RedirectToLogin(s.nav, s.redirect, "")
	return errors.Join(logoutErr, navErr)
}

// Close cancels the tracked request and drops all observers
func (s *Store) Close() {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.Lock()
	s.closed = true
	s.observers = make(map[uint64]func(View))
	s.mu.Unlock()

	s.cancel()
}

// Subscribe registers fn to be called with a fresh View after every transition.
// fn must not call Reload, GetOrLoad or Logout synchronously.
func (s *Store) Subscribe(fn func(View)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// View returns the current state and snapshot
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Store) State() State {
	return s.View().State
}

func (s *Store) Loading() bool {
	return s.View().Loading()
}

func (s *Store) Current() (client.User, bool) {
	return s.View().Current()
}

func (s *Store) IsAuth() bool {
	return s.View().IsAuth()
}

func (s *Store) Projects() []client.Project {
	return s.View().Projects()
}

// ActiveProject returns the project selected by the route's projectId parameter
func (s *Store) ActiveProject() (client.Project, bool) {
	return s.View().ActiveProject()
}

// beginLocked registers a new tracked request. s.mu must be held.
func (s *Store) beginLocked() (*Request, context.Context) {
	if s.req != nil {
		s.req.cancel()
	}

	s.gen++
	reqCtx, cancel := context.WithCancel(s.ctx)
	req := &Request{
		gen:    s.gen,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.req = req
	s.state = StateLoading

	s.logger.Debug().Uint64("generation", req.gen).Msg("Loading current session")

	return req, reqCtx
}

func (s *Store) run(ctx context.Context, req *Request) {
	defer req.cancel()

	resp, err := s.api.CurrentSession(ctx)

	to := StateReady
	var snap Snapshot
	switch {
	case err == nil:
		snap = snapshotFrom(resp)
	case errors.Is(err, client.ErrUnauthorized):
		// Not logged in is a valid answer
		err = nil
	default:
		to = StateFailed
	}

	req.snapshot, req.err = snap, err
	s.settle(req, to, snap, err)
	close(req.done)
}

// settle applies a finished request if it is still the tracked one
func (s *Store) settle(req *Request, to State, snap Snapshot, err error) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.Lock()
	if s.closed || req.gen != s.gen || !canTransition(s.state, to) {
		s.mu.Unlock()
		s.logger.Debug().
			Uint64("generation", req.gen).
			Err(err).
			Msg("Discarding stale session response")
		return
	}
	s.state = to
	s.snapshot = snap
	view, observers := s.viewLocked(), s.observersLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Uint64("generation", req.gen).Msg("Failed to load current session")
	} else {
		s.logger.Debug().
			Uint64("generation", req.gen).
			Bool("authenticated", snap.IsAuth()).
			Int("projects", len(snap.Projects)).
			Msg("Current session loaded")
	}

	notify(observers, view)
}

func (s *Store) viewLocked() View {
	return View{
		State:      s.state,
		Generation: s.gen,
		Snapshot:   s.snapshot,
		ProjectID:  s.route.Param(ParamProjectID),
	}
}

func (s *Store) observersLocked() []func(View) {
	out := make([]func(View), 0, len(s.observers))
	for _, fn := range s.observers {
		out = append(out, fn)
	}
	return out
}

func notify(observers []func(View), view View) {
	for _, fn := range observers {
		fn(view)
	}
}
