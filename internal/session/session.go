// Package session owns the per-login state of the engine: the acting user,
// the bearer token and the lookup caches that live until logout.
package session

import (
	"errors"
	"strings"
	"sync"

	"task-board-sync/internal/cache"
	"task-board-sync/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSession = errors.New("no active session")

// Session is shared by every engine component of one logged-in user.
type Session struct {
	mu     sync.RWMutex
	actor  models.Actor
	token  string
	active bool

	// ProductOwners maps project id -> product owner user id.
	ProductOwners *cache.SimpleCache[string, string]
	// UserNames maps user id -> display name.
	UserNames *cache.SimpleCache[string, string]
	// FailedLookups holds ids whose lookup already failed this session.
	FailedLookups *cache.IDSet
}

// New opens a session for actor.
func New(actor models.Actor, token string, cacheSize int) *Session {
	return &Session{
		actor:         actor,
		token:         token,
		active:        true,
		ProductOwners: cache.NewSimpleCache[string, string](cache.Options{ConcurrencySafe: true, MaxEntries: cacheSize}),
		UserNames:     cache.NewSimpleCache[string, string](cache.Options{ConcurrencySafe: true, MaxEntries: cacheSize}),
		FailedLookups: cache.NewIDSet(cacheSize),
	}
}

type tokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// FromToken opens a session from a bearer token issued by the task store.
// The signature is checked by the server on every request; here we only
// read who we are.
func FromToken(token string, cacheSize int) (*Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, ErrNoSession
	}
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("token carries no user id")
	}
	return New(models.NewActor(claims.UserID, claims.Username), token, cacheSize), nil
}

// Actor returns the acting user.
func (s *Session) Actor() models.Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actor
}

// Grant adds a capability to the acting user, e.g. project ownership once the
// board's product owner is known.
func (s *Session) Grant(c models.Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = s.actor.With(c)
}

// Token returns the bearer token, empty after logout.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Active reports whether Logout has not been called yet.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Logout tears the session down and drops every cached lookup.
func (s *Session) Logout() {
	s.mu.Lock()
	s.token = ""
	s.active = false
	s.actor = models.Actor{}
	s.mu.Unlock()

	s.ProductOwners.Clear()
	s.UserNames.Clear()
	s.FailedLookups.Clear()
}
