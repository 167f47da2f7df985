// Package conversation owns per-conversation state and its concurrency
// discipline: at most one turn may run against a conversation at a time.
package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/quarry0/quarry/internal/artifact"
)

var (
	// ErrNotFound is returned for operations on unknown conversation ids.
	ErrNotFound = errors.New("conversation not found")

	// ErrBusy is returned when a turn is already running for the
	// conversation. Interleaved turns would corrupt tool correlation
	// ordering, so a concurrent second turn is rejected, not queued.
	ErrBusy = errors.New("conversation busy")
)

// Conversation is the state one id accumulates across turns: the message
// history, the chart list, the single live presentation, the current slide
// pointer and the latest suggestions.
type Conversation struct {
	ID           string
	Messages     []*ai.Message
	Charts       []artifact.Chart
	Presentation *artifact.Presentation
	SlideIndex   int
	Suggestions  []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store holds conversations in memory, keyed by id. All methods are safe for
// concurrent use.
type Store struct {
	mu     sync.Mutex
	convos map[string]*Conversation
	active map[string]bool
}

func NewStore() *Store {
	return &Store{
		convos: make(map[string]*Conversation),
		active: make(map[string]bool),
	}
}

// Acquire returns the conversation for id, creating it when missing, and
// marks it busy for the duration of a turn. An empty id allocates a new one.
// The release function must be called exactly once when the turn ends.
// Returns ErrBusy if a turn is already in flight for the id.
func (s *Store) Acquire(id string) (*Conversation, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if s.active[id] {
		return nil, nil, ErrBusy
	}

	c, ok := s.convos[id]
	if !ok {
		now := time.Now().UTC()
		c = &Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
		s.convos[id] = c
	}
	s.active[id] = true

	release := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		c.UpdatedAt = time.Now().UTC()
		delete(s.active, id)
	}
	return c, release, nil
}

// Get returns the conversation for id, or ErrNotFound.
func (s *Store) Get(id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Delete discards a conversation. Deleting an unknown id is not an error.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convos, id)
}

// UpdateSlide sets the current slide pointer for an existing conversation.
func (s *Store) UpdateSlide(id string, index int) error {
	if index < 0 {
		return errors.New("slide index must be >= 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convos[id]
	if !ok {
		return ErrNotFound
	}
	c.SlideIndex = index
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Len reports the number of stored conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convos)
}
