package store

import (
	"fmt"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/mmcdole/kinotv/internal/domain"
)

// SessionStore persists per-user server credentials.
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

func sessionKey(serverID, userID string) string {
	return url.PathEscape(serverID) + "/" + url.PathEscape(userID)
}

func (s *SessionStore) Save(creds domain.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return s.db.putAll(bucketSessions, map[string][]byte{
		sessionKey(creds.ServerID, creds.UserID): data,
	})
}

// Load returns the stored credentials for a server/user pair.
func (s *SessionStore) Load(serverID, userID string) (domain.Credentials, bool) {
	var creds domain.Credentials
	data, err := s.db.get(bucketSessions, sessionKey(serverID, userID))
	if err != nil || data == nil {
		return creds, false
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, false
	}
	return creds, creds.Token != ""
}

func (s *SessionStore) Delete(serverID, userID string) error {
	return s.db.delete(bucketSessions, sessionKey(serverID, userID))
}
