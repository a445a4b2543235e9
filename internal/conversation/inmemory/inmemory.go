// Package inmemory provides a conversation store backed by a map.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"pdfrag/internal/conversation"
	"pdfrag/internal/domain"
)

// Store keeps sessions for the life of the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]domain.Turn
}

func NewStore() *Store {
	return &Store{sessions: make(map[string][]domain.Turn)}
}

func (s *Store) Load(_ context.Context, sessionID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.sessions[sessionID]
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *Store) Append(_ context.Context, sessionID string, turns ...domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], turns...)
	return nil
}

// Sessions lists sessions most recently updated first.
func (s *Store) Sessions(_ context.Context) ([]conversation.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]conversation.Session, 0, len(s.sessions))
	for id, turns := range s.sessions {
		sess := conversation.Session{ID: id, Turns: len(turns)}
		for _, t := range turns {
			if t.Timestamp.After(sess.UpdatedAt) {
				sess.UpdatedAt = t.Timestamp
			}
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) Close() error { return nil }

var _ conversation.Store = (*Store)(nil)
