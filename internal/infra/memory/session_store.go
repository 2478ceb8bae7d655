package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jinford/doc-rag/internal/core/session"
)

// SessionStore はプロセス内にセッションを保持する session.Store の実装
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	now      func() time.Time
}

var _ session.Store = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session.Session),
		now:      time.Now,
	}
}

// Get はセッションのコピーを返す
func (s *SessionStore) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	copied := *sess
	copied.Messages = slices.Clone(sess.Messages)
	return &copied, nil
}

func (s *SessionStore) Append(_ context.Context, id string, messages ...session.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session.Session{ID: id, CreatedAt: now}
		s.sessions[id] = sess
	}
	sess.Messages = append(sess.Messages, messages...)
	sess.LastActivity = now
	return nil
}

func (s *SessionStore) EvictOldest(_ context.Context, id string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	if keep < 0 {
		keep = 0
	}
	if over := len(sess.Messages) - keep; over > 0 {
		sess.Messages = slices.Clone(sess.Messages[over:])
	}
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *SessionStore) List(context.Context) ([]session.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]session.Summary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		summaries = append(summaries, session.Summary{
			ID:           sess.ID,
			MessageCount: len(sess.Messages),
			CreatedAt:    sess.CreatedAt,
			LastActivity: sess.LastActivity,
		})
	}
	slices.SortFunc(summaries, func(a, b session.Summary) int {
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return summaries, nil
}

func (s *SessionStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.sessions)
	return nil
}
