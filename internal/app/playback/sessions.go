package playback

import (
	"sync"
	"time"

	"trackhistory/internal/domain/history"

	"github.com/google/uuid"
)

const defaultSessionTTL = 30 * time.Minute

// Sessions keeps one engine per playback session. An engine is only touched
// while its session lock is held.
type Sessions struct {
	mu    sync.Mutex
	items map[string]*session
	ttl   time.Duration
	now   func() time.Time
	newID func() string
}

type session struct {
	mu      sync.Mutex
	engine  *history.Engine
	touched time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Sessions{
		items: map[string]*session{},
		ttl:   ttl,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *Sessions) create(engine *history.Engine) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	id := s.newID()
	s.items[id] = &session{engine: engine, touched: s.now()}
	return id
}

// with runs fn on the engine of id under the session lock.
func (s *Sessions) with(id string, fn func(engine *history.Engine) error) error {
	sess, ok := s.lookup(id)
	if !ok {
		return ErrSessionNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess.engine)
}

func (s *Sessions) replace(id string, engine *history.Engine) error {
	sess, ok := s.lookup(id)
	if !ok {
		return ErrSessionNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.engine = engine
	return nil
}

func (s *Sessions) lookup(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	sess, ok := s.items[id]
	if ok {
		sess.touched = s.now()
	}
	return sess, ok
}

func (s *Sessions) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.items)
}

func (s *Sessions) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.items {
		if sess.touched.Before(cutoff) {
			delete(s.items, id)
		}
	}
}
