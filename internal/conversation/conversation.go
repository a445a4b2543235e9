// Package conversation holds chat history as an explicit value that callers
// load from and save to a Store at session boundaries.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdfrag/internal/domain"
)

// Store persists conversation turns by session ID.
type Store interface {
	// Load returns a session's turns oldest first. Unknown sessions yield no
	// turns and no error.
	Load(ctx context.Context, sessionID string) ([]domain.Turn, error)
	Append(ctx context.Context, sessionID string, turns ...domain.Turn) error
	Sessions(ctx context.Context) ([]Session, error)
	Close() error
}

// Session summarizes one stored conversation.
type Session struct {
	ID        string
	Turns     int
	UpdatedAt time.Time
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithClock overrides time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) { c.now = now }
}

// Conversation is an append-only list of turns. It is safe for concurrent
// use, though one request at a time per conversation is expected.
type Conversation struct {
	id  string
	now func() time.Time

	mu    sync.RWMutex
	turns []domain.Turn
	saved int
}

// New starts an empty conversation. An empty id gets a random UUID.
func New(id string, opts ...Option) *Conversation {
	if id == "" {
		id = uuid.New().String()
	}
	c := &Conversation{id: id, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Conversation) ID() string { return c.id }

// Append records a turn stamped with the conversation clock.
func (c *Conversation) Append(role domain.Role, content string) domain.Turn {
	t := domain.Turn{Role: role, Content: content, Timestamp: c.now()}
	c.mu.Lock()
	c.turns = append(c.turns, t)
	c.mu.Unlock()
	return t
}

// Turns returns a copy of every turn, oldest first.
func (c *Conversation) Turns() []domain.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Recent returns the last n turns, oldest first. n <= 0 returns none.
func (c *Conversation) Recent(n int) []domain.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	if n > len(c.turns) {
		n = len(c.turns)
	}
	out := make([]domain.Turn, n)
	copy(out, c.turns[len(c.turns)-n:])
	return out
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Open loads a conversation from store. Loaded turns count as saved.
func Open(ctx context.Context, store Store, id string, opts ...Option) (*Conversation, error) {
	c := New(id, opts...)
	turns, err := store.Load(ctx, c.id)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", c.id, err)
	}
	for _, t := range turns {
		if !t.Role.Valid() {
			return nil, fmt.Errorf("loading session %s: unknown role %q", c.id, t.Role)
		}
	}
	c.turns = turns
	c.saved = len(turns)
	return c, nil
}

// Save appends the turns added since the conversation was opened or last
// saved.
func Save(ctx context.Context, store Store, c *Conversation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.turns[c.saved:]
	if len(pending) == 0 {
		return nil
	}
	if err := store.Append(ctx, c.id, pending...); err != nil {
		return fmt.Errorf("saving session %s: %w", c.id, err)
	}
	c.saved = len(c.turns)
	return nil
}
