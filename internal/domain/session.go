package domain

import "context"

// Session identifies the signed-in user on a server
type Session struct {
	ServerID string
	UserID   string
	Username string
}

// Same reports whether two sessions are for the same server and user.
func (s *Session) Same(o *Session) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.ServerID == o.ServerID && s.UserID == o.UserID
}

// Credentials are what a session needs to talk to the server
type Credentials struct {
	ServerID  string `json:"server_id"`
	ServerURL string `json:"server_url"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Token     string `json:"token"`
}

// AuthResult contains the result of a successful authentication
type AuthResult struct {
	Token    string // Access token for API calls
	UserID   string // User identifier
	Username string // Display username
	ServerID string // Server identifier
}

// SessionSource is the active-session signal consumed by the scheduler and presenter.
type SessionSource interface {
	// ActiveSession streams the current session (nil when signed out) until ctx is done
	ActiveSession(ctx context.Context) <-chan *Session
}
