// Package store reads the authenticated session written by the login flow.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/minaorangina/rummy/protocol"
)

var (
	ErrNoSession = errors.New("no session")
	ErrNoToken   = errors.New("session has no token")
)

// User is the locally cached identity of the signed-in player
type User struct {
	ID       protocol.ID `json:"id"`
	Username string      `json:"username"`
}

// Session is the persisted auth state: a bearer token and who it belongs to
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// SessionStore gives read access to the current session. Callers read it
// each time they need it so a refreshed session is picked up.
type SessionStore interface {
	Session() (Session, error)
}

// Token is a convenience for the bearer token of store's session
func Token(s SessionStore) (string, error) {
	sess, err := s.Session()
	if err != nil {
		return "", err
	}
	if sess.Token == "" {
		return "", ErrNoToken
	}
	return sess.Token, nil
}

// PlayerID returns the cached player id, or "" if there is no session
func PlayerID(s SessionStore) protocol.ID {
	sess, err := s.Session()
	if err != nil {
		return ""
	}
	return sess.User.ID
}

// InMemorySessionStore holds a session in memory
type InMemorySessionStore struct {
	mu      sync.RWMutex
	session *Session
}

// NewInMemorySessionStore constructs a store holding sess
func NewInMemorySessionStore(sess Session) *InMemorySessionStore {
	return &InMemorySessionStore{session: &sess}
}

func (s *InMemorySessionStore) Session() (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Session{}, ErrNoSession
	}
	return *s.session, nil
}

// Set replaces the held session
func (s *InMemorySessionStore) Set(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &sess
}

// Clear forgets the held session
func (s *InMemorySessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
}

// FileSessionStore reads a JSON session file on every call
type FileSessionStore struct {
	path string
	// token, if set, replaces the token found in the file
	token string
}

// NewFileSessionStore reads sessions from path. A non-empty token
// overrides whatever token the file holds.
func NewFileSessionStore(path, token string) *FileSessionStore {
	return &FileSessionStore{path: path, token: token}
}

func (s *FileSessionStore) Session() (Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if s.token != "" {
			return Session{Token: s.token}, nil
		}
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("reading session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decoding session file %s: %w", s.path, err)
	}
	if s.token != "" {
		sess.Token = s.token
	}
	return sess, nil
}
