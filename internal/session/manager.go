package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/kinotv/internal/domain"
	"github.com/mmcdole/kinotv/internal/signal"
)

// Authenticator exchanges a username and password for credentials
type Authenticator interface {
	Authenticate(ctx context.Context, serverURL, username, password string) (*domain.AuthResult, error)
}

// CredentialStore persists credentials per server/user pair
type CredentialStore interface {
	Save(creds domain.Credentials) error
	Load(serverID, userID string) (domain.Credentials, bool)
	Delete(serverID, userID string) error
}

// CacheClearer drops cached data belonging to a signed-out user
type CacheClearer interface {
	Clear() error
}

// ClientFactory builds a media client bound to a set of credentials
type ClientFactory func(creds domain.Credentials) domain.MediaClient

// Manager owns the active session. It is the single writer of the
// active-session signal that the scheduler and presenters subscribe to.
type Manager struct {
	auth      Authenticator
	creds     CredentialStore
	cache     CacheClearer
	newClient ClientFactory
	logger    *slog.Logger

	mu      sync.Mutex
	current *domain.Credentials
	client  domain.MediaClient

	active *signal.Signal[*domain.Session]
}

var _ domain.SessionSource = (*Manager)(nil)

// NewManager creates a Manager with no active session. cache may be nil.
func NewManager(auth Authenticator, creds CredentialStore, cache CacheClearer, newClient ClientFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		auth:      auth,
		creds:     creds,
		cache:     cache,
		newClient: newClient,
		logger:    logger,
		active:    signal.NewWith[*domain.Session](nil),
	}
}

// Login authenticates against serverURL, stores the credentials and makes
// the resulting session active.
func (m *Manager) Login(ctx context.Context, serverURL, username, password string) (*domain.Session, error) {
	result, err := m.auth.Authenticate(ctx, serverURL, username, password)
	if err != nil {
		m.logger.Warn("login failed", "error", err, "server", serverURL, "username", username)
		return nil, err
	}
	if result.ServerID == "" || result.UserID == "" {
		return nil, fmt.Errorf("server returned incomplete credentials: %w", domain.ErrAuthFailed)
	}

	creds := domain.Credentials{
		ServerID:  result.ServerID,
		ServerURL: serverURL,
		UserID:    result.UserID,
		Username:  result.Username,
		Token:     result.Token,
	}
	if err := m.creds.Save(creds); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}

	m.logger.Info("logged in", "serverID", creds.ServerID, "userID", creds.UserID)
	return m.activate(creds), nil
}

// RestoreSession activates previously stored credentials for a server/user pair.
func (m *Manager) RestoreSession(serverID, userID string) (*domain.Session, error) {
	if cur := m.Current(); cur != nil && cur.ServerID == serverID && cur.UserID == userID {
		return cur, nil
	}

	creds, ok := m.creds.Load(serverID, userID)
	if !ok {
		return nil, domain.ErrNoSession
	}

	m.logger.Info("restored session", "serverID", serverID, "userID", userID)
	return m.activate(creds), nil
}

// Logout ends the active session, forgets its credentials and clears the
// suggestion cache.
func (m *Manager) Logout() error {
	m.mu.Lock()
	current := m.current
	m.current = nil
	m.client = nil
	m.mu.Unlock()

	m.active.Set(nil)
	if current == nil {
		return nil
	}

	if err := m.creds.Delete(current.ServerID, current.UserID); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	if m.cache != nil {
		if err := m.cache.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}

	m.logger.Info("logged out", "serverID", current.ServerID, "userID", current.UserID)
	return nil
}

// Current returns the active session, or nil.
func (m *Manager) Current() *domain.Session {
	s, _ := m.active.Get()
	return s
}

// Client returns the media client for the active session. It fails with
// ErrNoSession unless serverID/userID is the active session.
func (m *Manager) Client(serverID, userID string) (domain.MediaClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.ServerID != serverID || m.current.UserID != userID {
		return nil, domain.ErrNoSession
	}
	return m.client, nil
}

// ActiveSession streams the current session (nil when signed out) until ctx is done.
func (m *Manager) ActiveSession(ctx context.Context) <-chan *domain.Session {
	return m.active.Subscribe(ctx)
}

// Close ends every active-session subscription.
func (m *Manager) Close() {
	m.active.Close()
}

func (m *Manager) activate(creds domain.Credentials) *domain.Session {
	session := &domain.Session{
		ServerID: creds.ServerID,
		UserID:   creds.UserID,
		Username: creds.Username,
	}

	m.mu.Lock()
	m.current = &creds
	m.client = m.newClient(creds)
	m.mu.Unlock()

	m.active.Set(session)
	return session
}
