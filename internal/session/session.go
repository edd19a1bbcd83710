// Package session holds the per-client session: the backend bearer token and
// UI preferences. Sessions are loaded when a request starts, set on login and
// cleared on logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyToken is returned when login supplies no token.
var ErrEmptyToken = errors.New("session: token is required")

// Session is the state of one client.
type Session struct {
	ID               string `json:"id"`
	Token            string `json:"-"`
	SidebarCollapsed bool   `json:"sidebar_collapsed"`
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// Store persists sessions. LoadSession returns nil, nil when absent.
type Store interface {
	LoadSession(ctx context.Context, id string) (*Session, error)
	SaveSession(ctx context.Context, s *Session, ttl time.Duration) error
}

// Manager implements the session lifecycle over a Store.
type Manager struct {
	store Store
	ttl   time.Duration
}

func NewManager(store Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// Init loads a session, or starts a fresh one under a new id when the id is
// empty or unknown.
func (m *Manager) Init(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		s, err := m.store.LoadSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		if s != nil {
			return s, nil
		}
	}

	s := &Session{ID: uuid.New().String()}
	if err := m.store.SaveSession(ctx, s, m.ttl); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return s, nil
}

// Set stores the token issued at login.
func (m *Manager) Set(ctx context.Context, s *Session, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	s.Token = token
	return m.store.SaveSession(ctx, s, m.ttl)
}

// Clear drops the token on logout. Preferences survive.
func (m *Manager) Clear(ctx context.Context, s *Session) error {
	s.Token = ""
	return m.store.SaveSession(ctx, s, m.ttl)
}

// SetSidebarCollapsed updates the sidebar preference.
func (m *Manager) SetSidebarCollapsed(ctx context.Context, s *Session, collapsed bool) error {
	s.SidebarCollapsed = collapsed
	return m.store.SaveSession(ctx, s, m.ttl)
}

type ctxKey struct{}

// WithSession attaches a session to a context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached to ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// Token returns the bearer token of the session in ctx, or "".
func Token(ctx context.Context) string {
	if s, ok := FromContext(ctx); ok {
		return s.Token
	}
	return ""
}

// MemoryStore keeps sessions in process memory. TTLs are not enforced.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) LoadSession(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) SaveSession(_ context.Context, s *Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = *s
	return nil
}
