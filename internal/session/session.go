// Package session holds the admin auth context. Everything that needs the
// admin token reads it from a *Session; nothing else stores it.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Session struct {
	mu        sync.RWMutex
	token     string
	user      map[string]any
	expiresAt time.Time
	now       func() time.Time
}

func New() *Session {
	return &Session{now: time.Now}
}

// Set stores a token and the user it belongs to. Expiry comes from the
// token's exp claim when it is a JWT; the CMS remains the verifier.
func (s *Session) Set(token string, user map[string]any) {
	exp := ExpiryOf(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = user
	s.expiresAt = exp
}

// Token returns the current token, or "" when logged out or expired.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expiredLocked() {
		return ""
	}
	return s.token
}

func (s *Session) User() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expiredLocked() || s.user == nil {
		return nil
	}
	out := make(map[string]any, len(s.user))
	for k, v := range s.user {
		out[k] = v
	}
	return out
}

func (s *Session) LoggedIn() bool { return s.Token() != "" }

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	s.expiresAt = time.Time{}
}

func (s *Session) expiredLocked() bool {
	if s.token == "" {
		return true
	}
	return !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt)
}

// ExpiryOf reads the exp claim of a JWT without verifying its signature.
// Opaque tokens and tokens without exp yield the zero time (never expires locally).
func ExpiryOf(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

type state struct {
	Token string         `json:"token"`
	User  map[string]any `json:"user,omitempty"`
}

// Save writes the session to path with owner-only permissions.
func (s *Session) Save(path string) error {
	s.mu.RLock()
	st := state{Token: s.token, User: s.user}
	s.mu.RUnlock()
	b, err := json.MarshalIndent(st, "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

var ErrNoSession = errors.New("no saved session")

// Load reads a session saved by Save. A missing file returns ErrNoSession.
func Load(path string) (*Session, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	s := New()
	if st.Token != "" {
		s.Set(st.Token, st.User)
	}
	return s, nil
}
