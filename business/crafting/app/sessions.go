package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apperror"
)

// Session holds the latest snapshot of one open recipe view.
type Session struct {
	ID       string
	OpenedAt time.Time

	mu      sync.Mutex
	tree    *domain.RecipeTree
	touched time.Time
}

// Snapshot returns the current tree value.
func (s *Session) Snapshot() *domain.RecipeTree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// Update swaps the snapshot for fn's result. fn must not block: fetches
// happen outside the lock and are merged back with a second Update.
func (s *Session) Update(fn func(*domain.RecipeTree) (*domain.RecipeTree, error)) (*domain.RecipeTree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.tree)
	if next != nil {
		s.tree = next
	}
	s.touched = time.Now()
	return s.tree, err
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// SessionStore indexes open sessions by id.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Create registers a new session around tree.
func (s *SessionStore) Create(tree *domain.RecipeTree) *Session {
	now := time.Now()
	sess := &Session{ID: uuid.NewString(), OpenedAt: now, tree: tree, touched: now}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get finds a session or fails with CodeSessionNotFound.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperror.NotFound(apperror.CodeSessionNotFound, id)
	}
	return sess, nil
}

// Close drops a session. Loads still in flight for it are discarded.
func (s *SessionStore) Close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// All returns the open sessions in no particular order.
func (s *SessionStore) All() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Len is the number of open sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Evict closes sessions idle for longer than maxIdle and returns how many.
func (s *SessionStore) Evict(maxIdle time.Duration, now time.Time) int {
	var stale []string
	for _, sess := range s.All() {
		if now.Sub(sess.idleSince()) > maxIdle {
			stale = append(stale, sess.ID)
		}
	}
	for _, id := range stale {
		s.Close(id)
	}
	return len(stale)
}
