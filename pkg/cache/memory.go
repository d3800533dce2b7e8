package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
)

type memoryEntry struct {
	key       string
	payload   []byte
	expiresAt time.Time
}

// MemoryStore is a process-local TTL cache bounded by entry count. When full,
// the oldest inserted entry is evicted first. Values are stored JSON encoded
// so callers observe the same copy semantics as the Redis backend.
type MemoryStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	order      *list.List
	items      map[string]*list.Element
	now        func() time.Time
}

// NewMemoryStore builds a store. ttl is the default expiry; maxEntries <= 0
// disables the size bound.
func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Get decodes the cached value for key into dest or returns ErrCacheMiss.
func (s *MemoryStore) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	elem, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		return appErrors.ErrCacheMiss
	}
	entry := elem.Value.(*memoryEntry)
	if !s.now().Before(entry.expiresAt) {
		s.removeElement(elem)
		s.mu.Unlock()
		return appErrors.ErrCacheMiss
	}
	payload := entry.payload
	s.mu.Unlock()

	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set stores value under key. A non-positive ttl uses the store default.
func (s *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		s.removeElement(elem)
	}
	if s.maxEntries > 0 && len(s.items) >= s.maxEntries {
		s.purgeExpired()
		for len(s.items) >= s.maxEntries {
			s.removeElement(s.order.Front())
		}
	}
	entry := &memoryEntry{key: key, payload: payload, expiresAt: s.now().Add(ttl)}
	s.items[key] = s.order.PushBack(entry)
	return nil
}

// DeleteByPattern removes keys matching a glob pattern ("grading:settings:*").
func (s *MemoryStore) DeleteByPattern(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, elem := range s.items {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("match pattern %s: %w", pattern, err)
		}
		if matched {
			s.removeElement(elem)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemoryStore) purgeExpired() {
	now := s.now()
	for elem := s.order.Front(); elem != nil; {
		next := elem.Next()
		if !now.Before(elem.Value.(*memoryEntry).expiresAt) {
			s.removeElement(elem)
		}
		elem = next
	}
}

func (s *MemoryStore) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(s.items, entry.key)
	s.order.Remove(elem)
}
