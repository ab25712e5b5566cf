package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/utils/logging"
)

// ConversationFactory creates a fresh conversation for a user
type ConversationFactory func(user model.UserID) *Conversation

type session struct {
	conv     *Conversation
	lastUsed time.Time
}

// SessionManager keeps one Conversation per session ID. Each session is
// bound to the user that opened it.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session
	factory  ConversationFactory
	ttl      time.Duration
	now      func() time.Time
}

type SessionOption func(*SessionManager)

// WithSessionTTL sets how long an idle session is kept. Zero keeps sessions
// forever.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(m *SessionManager) {
		m.ttl = ttl
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		m.now = now
	}
}

func NewSessionManager(factory ConversationFactory, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		sessions: make(map[string]*session),
		factory:  factory,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the conversation of sessionID, creating it for user when it
// does not exist yet.
func (m *SessionManager) Get(sessionID string, user model.UserID) (*Conversation, error) {
	if sessionID == "" {
		return nil, goerr.New("session ID is required")
	}
	if user == "" {
		user = model.DefaultUserID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		s = &session{conv: m.factory(user)}
		m.sessions[sessionID] = s
	}

	if s.conv.UserID() != user {
		return nil, goerr.Wrap(ErrIdentityMismatch, "user does not own session",
			goerr.V(SessionIDKey, sessionID),
			goerr.V(UserIDKey, user),
		)
	}

	s.lastUsed = m.now()
	return s.conv, nil
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (m *SessionManager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.lastUsed) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle sessions every interval until ctx is done. It returns at
// once when either interval or the TTL is not positive.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 || m.ttl <= 0 {
		logging.From(ctx).Debug("idle session sweep disabled", "interval", interval, "ttl", m.ttl)
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logging.From(ctx).Info("evicted idle sessions", "count", n)
			}
		}
	}
}

// Close waits for the pending memory write-back of every live session
func (m *SessionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	convs := make([]*Conversation, 0, len(m.sessions))
	for _, s := range m.sessions {
		convs = append(convs, s.conv)
	}
	m.mu.Unlock()

	var errs []error
	for _, conv := range convs {
		if err := conv.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
