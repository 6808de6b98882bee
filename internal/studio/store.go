package studio

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"proprofile/internal/metrics"
)

// Store keeps sessions in memory. Idle sessions expire after the TTL and the
// least recently used session is evicted once the store is full.
type Store struct {
	cache *expirable.LRU[string, *Session]
}

func NewStore(maxSessions int, ttl time.Duration) *Store {
	onEvict := func(string, *Session) {
		metrics.ActiveSessions.Dec()
	}
	return &Store{cache: expirable.NewLRU[string, *Session](maxSessions, onEvict, ttl)}
}

// Create registers a new session under a random id.
func (s *Store) Create() *Session {
	sess := NewSession(uuid.NewString())
	s.cache.Add(sess.ID(), sess)
	metrics.ActiveSessions.Inc()
	return sess
}

// Get returns the session for id and extends its lifetime.
func (s *Store) Get(id string) (*Session, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	sess, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	s.cache.Add(id, sess)
	return sess, true
}

// GetOrCreate resolves id, creating a fresh session when it is unknown or
// expired. The second result reports whether a session was created.
func (s *Store) GetOrCreate(id string) (*Session, bool) {
	if sess, ok := s.Get(id); ok {
		return sess, false
	}
	return s.Create(), true
}

func (s *Store) Remove(id string) bool {
	return s.cache.Remove(id)
}

func (s *Store) Len() int {
	return s.cache.Len()
}
