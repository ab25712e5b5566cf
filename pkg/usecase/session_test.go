package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/usecase"
)

func newTestSessionManager(opts ...usecase.SessionOption) *usecase.SessionManager {
	mem := &mockMemoryIndex{}
	gen := &mockGenerator{}
	return usecase.NewSessionManager(func(user model.UserID) *usecase.Conversation {
		return usecase.NewConversation(mem, gen, user)
	}, opts...)
}

func TestSessionManager_Get(t *testing.T) {
	t.Run("same session returns same conversation", func(t *testing.T) {
		m := newTestSessionManager()

		c1, err := m.Get("s1", "alice")
		gt.NoError(t, err).Required()
		c2, err := m.Get("s1", "alice")
		gt.NoError(t, err).Required()

		gt.Bool(t, c1 == c2).True()
		gt.Value(t, m.Len()).Equal(1)
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		m := newTestSessionManager()

		c1, err := m.Get("s1", "alice")
		gt.NoError(t, err).Required()
		c2, err := m.Get("s2", "alice")
		gt.NoError(t, err).Required()

		_, err = c1.Send(context.Background(), "hello")
		gt.NoError(t, err).Required()

		gt.Array(t, c1.Transcript()).Length(2)
		gt.Array(t, c2.Transcript()).Length(0)
	})

	t.Run("other user is rejected", func(t *testing.T) {
		m := newTestSessionManager()

		_, err := m.Get("s1", "alice")
		gt.NoError(t, err).Required()

		_, err = m.Get("s1", "mallory")
		gt.Bool(t, errors.Is(err, usecase.ErrIdentityMismatch)).True()
	})

	t.Run("empty user uses default identity", func(t *testing.T) {
		m := newTestSessionManager()
		c, err := m.Get("s1", "")
		gt.NoError(t, err).Required()
		gt.Value(t, c.UserID()).Equal(model.DefaultUserID)
	})

	t.Run("empty session ID is rejected", func(t *testing.T) {
		m := newTestSessionManager()
		_, err := m.Get("", "alice")
		gt.Error(t, err)
	})
}

func TestSessionManager_Sweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := newTestSessionManager(usecase.WithSessionTTL(time.Minute), usecase.WithClock(clock))

	_, err := m.Get("old", "alice")
	gt.NoError(t, err).Required()

	now = now.Add(50 * time.Second)
	_, err = m.Get("fresh", "alice")
	gt.NoError(t, err).Required()

	now = now.Add(30 * time.Second)
	gt.Value(t, m.Sweep()).Equal(1)
	gt.Value(t, m.Len()).Equal(1)

	t.Run("zero TTL keeps sessions", func(t *testing.T) {
		m := newTestSessionManager()
		_, err := m.Get("s", "alice")
		gt.NoError(t, err).Required()
		gt.Value(t, m.Sweep()).Equal(0)
		gt.Value(t, m.Len()).Equal(1)
	})
}

func TestSessionManager_Run(t *testing.T) {
	t.Run("stops when context is cancelled", func(t *testing.T) {
		m := newTestSessionManager(usecase.WithSessionTTL(time.Minute))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- m.Run(ctx, time.Millisecond) }()

		cancel()
		select {
		case err := <-done:
			gt.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Run did not stop")
		}
	})

	t.Run("non-positive interval disables the sweep", func(t *testing.T) {
		m := newTestSessionManager(usecase.WithSessionTTL(time.Minute))
		for _, interval := range []time.Duration{0, -time.Second} {
			gt.NoError(t, m.Run(context.Background(), interval))
		}
	})

	t.Run("zero TTL disables the sweep", func(t *testing.T) {
		m := newTestSessionManager()
		gt.NoError(t, m.Run(context.Background(), time.Millisecond))
	})
}

func TestSessionManager_Close(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Int32
	mem := &mockMemoryIndex{
		addFn: func(ctx context.Context, messages []model.MemoryMessage, user model.UserID) error {
			<-release
			finished.Add(1)
			return nil
		},
	}
	m := usecase.NewSessionManager(func(user model.UserID) *usecase.Conversation {
		return usecase.NewConversation(mem, &mockGenerator{}, user, usecase.WithAsyncWriteBack(true))
	})

	for _, id := range []string{"s1", "s2"} {
		conv, err := m.Get(id, "alice")
		gt.NoError(t, err).Required()
		_, err = conv.Send(context.Background(), "Hi")
		gt.NoError(t, err).Required()
	}

	t.Run("deadline while write-back is pending", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := m.Close(ctx)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, context.DeadlineExceeded)).True()
	})

	t.Run("drains every session", func(t *testing.T) {
		close(release)
		gt.NoError(t, m.Close(context.Background()))
		gt.Value(t, finished.Load()).Equal(int32(2))
	})
}
