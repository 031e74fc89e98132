package waitroom

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a single-process Store.  It backs tests and local runs
// without Redis; it offers the same atomicity as RedisStore by holding one
// mutex across every operation, but its state is not shared between
// processes.
type MemoryStore struct {
	mu       sync.Mutex
	list     *skipList
	index    map[string]*skipNode
	eligible map[string]time.Time
	seq      uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		list:     newSkipList(time.Now().UnixNano()),
		index:    make(map[string]*skipNode),
		eligible: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Insert(_ context.Context, key string, score int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[key]; ok {
		return nil
	}
	if _, ok := s.eligible[key]; ok {
		return nil
	}
	s.seq++
	s.list.insert(key, score, s.seq)
	s.index[key] = &skipNode{key: key, score: score, seq: s.seq}
	return nil
}

func (s *MemoryStore) Rank(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.index[key]
	if !ok {
		return 0, ErrNotFound
	}
	r := s.list.rank(n.score, n.seq)
	if r < 0 {
		return 0, ErrNotFound
	}
	return int64(r), nil
}

func (s *MemoryStore) Size(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.list.length), nil
}

func (s *MemoryStore) TakeHead(_ context.Context, n int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popLocked(n), nil
}

func (s *MemoryStore) popLocked(n int) []string {
	if n <= 0 {
		return nil
	}
	nodes := s.list.popFront(n)
	keys := make([]string, 0, len(nodes))
	for _, node := range nodes {
		delete(s.index, node.key)
		keys = append(keys, node.key)
	}
	return keys
}

func (s *MemoryStore) Promote(_ context.Context, n int, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.popLocked(n)
	for _, k := range keys {
		s.eligible[k] = now
	}
	return keys, nil
}

func (s *MemoryStore) IsEligible(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.eligible[key]
	return ok, nil
}

func (s *MemoryStore) Retire(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.eligible[key]
	if !ok {
		return time.Time{}, false, nil
	}
	delete(s.eligible, key)
	return at, true, nil
}

func (s *MemoryStore) Reinstate(_ context.Context, key string, promotedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.eligible[key]; !ok {
		s.eligible[key] = promotedAt
	}
	return nil
}

func (s *MemoryStore) ExpireEligible(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, at := range s.eligible {
		if at.Before(cutoff) {
			delete(s.eligible, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) EligibleCount(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.eligible)), nil
}
