package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cartomap/cartomap-client/authapi"
	"github.com/cartomap/cartomap-client/gateway"
	"github.com/cartomap/cartomap-client/identity"
	"github.com/cartomap/cartomap-client/internal/config"
	"github.com/cartomap/cartomap-client/session/refresh"
	"github.com/cartomap/cartomap-client/tokenstore"
)

// Manager is the single source of truth for authentication state. It owns
// the request gateway, the auth API client and the refresh coordinator, and
// satisfies the interfaces each of them needs (gateway.SessionProvider,
// refresh.TokenSink) so the dependency graph stays acyclic.
//
// Managers are constructed, not ambient: tests run independent sessions in
// parallel by creating one per fixture.
type Manager struct {
	cfg   config.Config
	store tokenstore.Store
	gw    *gateway.Gateway
	api   *authapi.Client
	coord *refresh.Coordinator
	log   zerolog.Logger

	lock          sync.RWMutex
	accessToken   string
	refreshToken  string
	user          *identity.UserIdentity
	authenticated bool
	initialized   bool
	state         State

	initOnce sync.Once
}

var (
	_ gateway.SessionProvider = (*Manager)(nil)
	_ refresh.TokenSink       = (*Manager)(nil)
)

// Option modifies a Manager under construction.
type Option func(*managerOptions)

type managerOptions struct {
	log         zerolog.Logger
	gatewayOpts []gateway.Option
}

// WithLogger sets the logger for the manager and everything it constructs.
func WithLogger(log zerolog.Logger) Option {
	return func(o *managerOptions) { o.log = log }
}

// WithGatewayOptions forwards options to the gateway the manager builds,
// e.g. gateway.WithHTTPClient or gateway.WithMetrics.
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(o *managerOptions) { o.gatewayOpts = append(o.gatewayOpts, opts...) }
}

// NewManager creates a session manager plus the gateway and coordinator
// wired to it. In-memory state is seeded from the token store, but the
// session stays uninitialized until Initialize confirms the tokens against
// the backend.
func NewManager(cfg config.Config, store tokenstore.Store, opts ...Option) *Manager {
	options := managerOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&options)
	}

	m := &Manager{
		cfg:   cfg,
		store: store,
		log:   options.log,
		state: StateUninitialized,
	}

	gwOpts := append([]gateway.Option{gateway.WithLogger(options.log)}, options.gatewayOpts...)
	m.gw = gateway.New(cfg, store, m, gwOpts...)
	m.api = authapi.New(m.gw, authapi.WithLogger(options.log))
	m.coord = refresh.NewCoordinator(m.api, m, refresh.WithLogger(options.log))

	tokens := store.Get()
	m.accessToken = tokens.AccessToken
	m.refreshToken = tokens.RefreshToken

	return m
}

// Gateway returns the request gateway bound to this session. Domain code
// issues all backend calls through it.
func (m *Manager) Gateway() *gateway.Gateway { return m.gw }

// Login exchanges credentials for tokens and loads the user identity.
// Invalid credentials surface as an AuthenticationError wrapping
// apierr.ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, creds authapi.Credentials) error {
	pair, err := m.api.Login(ctx, creds)
	if err != nil {
		return err
	}
	if err := m.SetTokens(pair); err != nil {
		return err
	}

	m.lock.Lock()
	m.authenticated = true
	m.state = StateAuthenticated
	m.lock.Unlock()

	m.log.Info().Str("username", creds.Username).Msg("logged in")
	return m.FetchUser(ctx)
}

// Logout synchronously clears the token store and in-memory state. It never
// touches the network and is safe to call any number of times.
func (m *Manager) Logout() {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.store.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("clearing token store on logout")
	}
	wasAuthenticated := m.authenticated
	m.accessToken = ""
	m.refreshToken = ""
	m.user = nil
	m.authenticated = false
	m.state = StateAnonymous

	if wasAuthenticated {
		m.log.Info().Msg("logged out")
	}
}

// RefreshTokens redeems the refresh token for a new pair via the refresh
// coordinator. Concurrent callers share a single network call. Fails with an
// AuthenticationError wrapping apierr.ErrNoRefreshToken when no refresh
// token is present.
func (m *Manager) RefreshTokens(ctx context.Context) (authapi.TokenPair, error) {
	return m.coord.EnsureRefreshed(ctx)
}

// EnsureRefreshed implements gateway.SessionProvider.
func (m *Manager) EnsureRefreshed(ctx context.Context) (string, error) {
	pair, err := m.coord.EnsureRefreshed(ctx)
	if err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

// FetchUser loads the current identity through the gateway and replaces the
// stored user wholesale. Failures propagate to the caller, which decides
// whether to log out.
func (m *Manager) FetchUser(ctx context.Context) error {
	var user identity.UserIdentity
	if err := m.gw.GetJSON(ctx, authapi.MePath, nil, &user); err != nil {
		return err
	}

	m.lock.Lock()
	m.user = &user
	m.lock.Unlock()
	return nil
}

// Initialize reconciles persisted tokens with actual session validity: a
// stored access token is confirmed by fetching the user; any failure forces
// a logout. Runs at most once per Manager; later calls return immediately.
// On return the session is settled as either authenticated or anonymous and
// Initialized reports true.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() {
		m.lock.Lock()
		m.state = StateInitializing
		m.lock.Unlock()

		tokens := m.store.Get()
		switch {
		case tokens.AccessToken == "":
			m.lock.Lock()
			m.state = StateAnonymous
			m.lock.Unlock()
		default:
			if err := m.FetchUser(ctx); err != nil {
				m.log.Warn().Err(err).Msg("stored session is not usable")
				m.Logout()
			} else {
				m.lock.Lock()
				m.authenticated = true
				m.state = StateAuthenticated
				m.lock.Unlock()
			}
		}

		m.lock.Lock()
		m.initialized = true
		m.lock.Unlock()
		m.log.Debug().Stringer("state", m.State()).Msg("session initialized")
	})
}

// SetTokens persists a token pair and updates in-memory state as one
// transition. Implements refresh.TokenSink.
func (m *Manager) SetTokens(pair authapi.TokenPair) error {
	if err := m.store.Set(tokenstore.Tokens{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}); err != nil {
		return err
	}

	m.lock.Lock()
	m.accessToken = pair.AccessToken
	m.refreshToken = pair.RefreshToken
	m.lock.Unlock()
	return nil
}

// RefreshToken implements refresh.TokenSink.
func (m *Manager) RefreshToken() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.refreshToken
}

// Authenticated reports whether a confirmed session is loaded.
func (m *Manager) Authenticated() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.authenticated
}

// Initialized reports whether bootstrap has completed.
func (m *Manager) Initialized() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.initialized
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state
}

// CurrentUser returns a copy of the loaded identity, or nil when anonymous.
func (m *Manager) CurrentUser() *identity.UserIdentity {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.user == nil {
		return nil
	}
	user := *m.user
	return &user
}

// Snapshot returns an immutable view of the session.
func (m *Manager) Snapshot() Snapshot {
	m.lock.RLock()
	defer m.lock.RUnlock()

	snap := Snapshot{
		AccessToken:   m.accessToken,
		RefreshToken:  m.refreshToken,
		Authenticated: m.authenticated,
		Initialized:   m.initialized,
		State:         m.state,
	}
	if m.user != nil {
		user := *m.user
		snap.User = &user
	}
	return snap
}
