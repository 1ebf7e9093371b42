// Package session tracks who is signed in. The Manager owns the current user
// profile and derives it from the stored credentials; everything else reads
// it through IsAuthenticated, CurrentUser or a Subscription.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"condoadmin/client"
	"condoadmin/client/credential"
	"condoadmin/internal/buffer"
	"condoadmin/internal/metrics"
	v1 "condoadmin/pkg/api/v1"
	"condoadmin/pkg/constraints"
	"condoadmin/pkg/logger"

	"go.uber.org/zap"
)

var (
	ErrMalformedLogin   = errors.New("session: login response is missing tokens or user")
	ErrNotAuthenticated = errors.New("session: not authenticated")
	ErrSessionChanged   = errors.New("session: signed out or replaced while the profile was loading")
)

type EventKind string

const (
	EventRestored       EventKind = "restored"
	EventRestoreFailed  EventKind = "restore_failed"
	EventLoggedIn       EventKind = "logged_in"
	EventLoggedOut      EventKind = "logged_out"
	EventInvalidated    EventKind = "invalidated"
	EventProfileUpdated EventKind = "profile_updated"
)

// historySize bounds how far back a reconnecting stream can catch up.
const historySize = 64

// Event is a change of the authentication signal. Redirect is set when the
// user must be sent elsewhere, e.g. to the login route after a failed renewal.
// Seq numbers events from 1 without gaps.
type Event struct {
	Seq           int64           `json:"seq"`
	Kind          EventKind       `json:"kind"`
	Authenticated bool            `json:"authenticated"`
	Loading       bool            `json:"loading"`
	User          *v1.UserProfile `json:"user,omitempty"`
	Redirect      string          `json:"redirect,omitempty"`
}

func (e Event) Revision() int64 { return e.Seq }

// Client is the subset of *client.Client the manager depends on.
type Client interface {
	Do(ctx context.Context, req *client.Request) (*client.Response, error)
	Store() credential.Store
	OnSessionInvalidated(fn func(error))
	LoginRoute() string
}

type Manager struct {
	api      Client
	store    credential.Store
	observer metrics.SessionObserver
	hub      *hub
	history  *buffer.RevisionBuffer[Event]

	loginPath  string
	logoutPath string
	mePath     string

	mu       sync.RWMutex
	user     *v1.UserProfile
	loading  bool
	disposed bool
	seq      int64
	// gen changes whenever the signed-in identity does; profile refreshes
	// leave it alone.
	gen uint64
}

type Option func(*Manager)

func WithObserver(o metrics.SessionObserver) Option {
	return func(m *Manager) { m.observer = o }
}

func WithPaths(login, logout, me string) Option {
	return func(m *Manager) {
		m.loginPath, m.logoutPath, m.mePath = login, logout, me
	}
}

// NewManager returns a Manager in the loading state. Call Init once at startup
// and Dispose at teardown.
func NewManager(api Client, opts ...Option) *Manager {
	m := &Manager{
		api:        api,
		store:      api.Store(),
		observer:   metrics.Nop,
		loginPath:  constraints.PathLogin,
		logoutPath: constraints.PathLogout,
		mePath:     constraints.PathMe,
		history:    buffer.NewRevisionBuffer[Event](historySize),
		loading:    true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.hub = newHub(m.observer)
	go m.hub.run()

	api.OnSessionInvalidated(m.Invalidate)
	return m
}

// Init restores the session left by a previous run.
func (m *Manager) Init(ctx context.Context) error {
	return m.RestoreOnStartup(ctx)
}

// RestoreOnStartup validates a stored access token against the current-user
// endpoint. Any failure clears the stored credentials and leaves the user
// signed out. Loading is true until it returns.
func (m *Manager) RestoreOnStartup(ctx context.Context) error {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	pair, err := m.store.Get(ctx)
	if err != nil {
		m.clearStore(ctx)
		m.setUser(nil, EventRestoreFailed, "")
		return fmt.Errorf("session: load credentials: %w", err)
	}
	if pair == nil {
		// cold start
		m.setUser(nil, EventRestored, "")
		return nil
	}

	user, err := m.fetchProfile(ctx)
	if err != nil {
		logger.Warn("stored session rejected", zap.Error(err))
		m.clearStore(ctx)
		m.setUser(nil, EventRestoreFailed, "")
		return nil
	}

	logger.Info("session restored", zap.String("username", user.Username))
	m.setUser(user, EventRestored, "")
	return nil
}

// Login exchanges a username and password for a credential pair and a
// profile. On failure nothing is stored and the API error is returned as is.
func (m *Manager) Login(ctx context.Context, username, password string) (*v1.UserProfile, error) {
	resp, err := m.api.Do(ctx, &client.Request{
		Method: http.MethodPost,
		Path:   m.loginPath,
		Body:   v1.LoginRequest{Username: username, Password: password},
	})
	if err != nil {
		return nil, err
	}

	var out v1.LoginResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("session: decode login response: %w", err)
	}
	if out.Access == "" || out.Refresh == "" || out.User == nil {
		return nil, ErrMalformedLogin
	}

	if err := m.store.Set(ctx, credential.Pair{Access: out.Access, Refresh: out.Refresh}); err != nil {
		return nil, fmt.Errorf("session: store credentials: %w", err)
	}

	logger.Info("user logged in", zap.String("username", out.User.Username))
	m.setUser(out.User, EventLoggedIn, "")
	return clone(out.User), nil
}

// Logout tells the server to revoke the refresh token, ignoring any failure,
// then clears local state. It always succeeds locally. The revocation call is
// anonymous so it can never rotate the very token it is revoking.
func (m *Manager) Logout(ctx context.Context) {
	pair, err := m.store.Get(ctx)
	if err != nil {
		logger.Warn("logout: failed to load credentials", zap.Error(err))
	}
	if pair != nil && pair.Refresh != "" {
		_, err := m.api.Do(ctx, &client.Request{
			Method:    http.MethodPost,
			Path:      m.logoutPath,
			Body:      v1.LogoutRequest{Refresh: pair.Refresh},
			Anonymous: true,
		})
		if err != nil {
			logger.Warn("server logout failed", zap.Error(err))
		}
	}

	m.clearStore(ctx)
	m.setUser(nil, EventLoggedOut, "")
}

// Invalidate signs the user out after the client has discarded the stored
// credentials. It is registered with the client at construction.
func (m *Manager) Invalidate(reason error) {
	logger.Warn("session invalidated", zap.Error(reason))
	m.setUser(nil, EventInvalidated, m.api.LoginRoute())
}

// ReloadProfile refetches the current user's profile. The result is dropped
// with ErrSessionChanged if the user signed out, or someone else signed in,
// while it was in flight.
func (m *Manager) ReloadProfile(ctx context.Context) (*v1.UserProfile, error) {
	m.mu.RLock()
	signedIn, gen := m.user != nil, m.gen
	m.mu.RUnlock()
	if !signedIn {
		return nil, ErrNotAuthenticated
	}

	user, err := m.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil || m.gen != gen {
		return nil, ErrSessionChanged
	}
	m.applyLocked(user, EventProfileUpdated, "")
	return clone(user), nil
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

func (m *Manager) CurrentUser() *v1.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.user)
}

// Snapshot is the current state in Event form.
func (m *Manager) Snapshot() Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Event{
		Seq:           m.seq,
		Authenticated: m.user != nil,
		Loading:       m.loading,
		User:          clone(m.user),
	}
}

// Since returns the events after seq. ok is false when some were already
// dropped from the history and the caller should start from a Snapshot.
func (m *Manager) Since(seq int64) ([]Event, bool) {
	return m.history.Since(seq)
}

// Subscribe returns a subscription to every later change.
func (m *Manager) Subscribe(buffer int) *Subscription {
	return m.hub.subscribe(buffer)
}

// Dispose closes all subscriptions. The manager must not be used afterwards.
func (m *Manager) Dispose() {
	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()
	m.hub.stop()
}

func (m *Manager) fetchProfile(ctx context.Context) (*v1.UserProfile, error) {
	resp, err := m.api.Do(ctx, &client.Request{Method: http.MethodGet, Path: m.mePath})
	if err != nil {
		return nil, err
	}
	var user v1.UserProfile
	if err := resp.Decode(&user); err != nil {
		return nil, fmt.Errorf("session: decode profile: %w", err)
	}
	return &user, nil
}

func (m *Manager) clearStore(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		logger.Error("failed to clear credentials", zap.Error(err))
	}
}

// setUser publishes while holding the lock so subscribers see events in the
// same order as the state changes. The hub never blocks on a subscriber.
func (m *Manager) setUser(user *v1.UserProfile, kind EventKind, redirect string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(user, kind, redirect)
}

func (m *Manager) applyLocked(user *v1.UserProfile, kind EventKind, redirect string) {
	if kind != EventProfileUpdated {
		m.gen++
	}
	m.user = clone(user)
	m.loading = false
	m.observer.SetAuthenticated(m.user != nil)
	if m.disposed {
		return
	}
	m.seq++
	ev := Event{
		Seq:           m.seq,
		Kind:          kind,
		Authenticated: m.user != nil,
		User:          clone(m.user),
		Redirect:      redirect,
	}
	m.history.Add(ev)
	m.hub.publish(ev)
}

func clone(u *v1.UserProfile) *v1.UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
