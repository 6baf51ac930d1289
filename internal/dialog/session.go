package dialog

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kosquant/krxagent/pkg/models"
)

// Store keeps pending parameter records keyed by conversation id. A stored
// record always carries a non-empty Missing list; a conversation with no
// entry is closed. Get and Set exchange copies, so callers may mutate what
// they hold without racing the store.
type Store interface {
	Get(convID string) (*models.Params, bool)
	Set(convID string, p *models.Params)
	Clear(convID string)
}

// MemStore is the in-process default: a mutex-guarded map. Good enough for
// a single instance; swap the Store for anything shared.
type MemStore struct {
	mu      sync.Mutex
	pending map[string]*models.Params
}

// NewMemStore creates an empty in-memory session store.
func NewMemStore() *MemStore {
	return &MemStore{pending: make(map[string]*models.Params)}
}

// Get returns a copy of the pending record for convID.
func (s *MemStore) Get(convID string) (*models.Params, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[convID]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Set stores a copy of p under convID, replacing any previous record.
func (s *MemStore) Set(convID string, p *models.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[convID] = p.Clone()
}

// Clear closes the conversation.
func (s *MemStore) Clear(convID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, convID)
}

// Len reports the number of open conversations.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// NewSessionID mints a fresh conversation id.
func NewSessionID() string {
	return uuid.NewString()
}
