package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/user"
)

var (
	ErrNotFound = errors.New("session not found")

	nowFunc = time.Now // mockable
)

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Role      user.Role `json:"role"`
	Remember  bool      `json:"remember"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Principal() user.Principal {
	return user.Principal{UserID: s.UserID, Name: s.Name, Role: s.Role}
}

func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// Store persists sessions. Get returns ErrNotFound for unknown or expired ids.
type Store interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

type Manager struct {
	store    Store
	lifetime time.Duration
}

func NewManager(conf *core.Config, store Store) *Manager {
	lifetime := conf.Session.Lifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	return &Manager{store: store, lifetime: lifetime}
}

func (m *Manager) Lifetime() time.Duration { return m.lifetime }

// Create opens a session for p with an absolute lifetime.
func (m *Manager) Create(ctx context.Context, p user.Principal, remember bool) (Session, error) {
	now := nowFunc().UTC()
	s := Session{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Name:      p.Name,
		Role:      p.Role,
		Remember:  remember,
		CreatedAt: now,
		ExpiresAt: now.Add(m.lifetime),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, errors.Wrap(err, "saving session")
	}
	return s, nil
}

func (m *Manager) Lookup(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNotFound
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(nowFunc()) {
		_ = m.store.Delete(ctx, id)
		return Session{}, ErrNotFound
	}
	return s, nil
}

// Destroy invalidates the session immediately. Unknown ids are not an error.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return errors.Wrap(m.store.Delete(ctx, id), "deleting session")
}
