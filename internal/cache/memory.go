package cache

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/postfetch/internal/model"
)

// DefaultMemoryEntries bounds a MemoryStore created without WithMaxEntries.
const DefaultMemoryEntries = 1024

// MemoryStore is a bounded least-recently-used Store.
// Entries older than the maximum age are dropped on read.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	maxAge     time.Duration
	order      *list.List // front is most recently used
	items      map[string]*list.Element
	now        func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxEntries bounds the number of entries kept.
func WithMaxEntries(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithMaxAge drops entries older than d. Zero keeps entries forever.
func WithMaxAge(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.maxAge = d
	}
}

// withClock replaces the time source in tests.
func withClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		maxEntries: DefaultMemoryEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read implements Store.
func (s *MemoryStore) Read(_ context.Context, key string) (*model.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*model.CacheEntry) //nolint:forcetypeassert // only *CacheEntry is stored
	if expired(entry.UpdatedAt, s.now(), s.maxAge) {
		s.removeElement(el)
		return nil, false
	}
	s.order.MoveToFront(el)

	out := *entry
	out.Payload = slices.Clone(entry.Payload)
	return &out, true
}

// Write implements Store. The least recently used entry is evicted when
// the store is full.
func (s *MemoryStore) Write(_ context.Context, entry model.CacheEntry) error {
	entry.Payload = slices.Clone(entry.Payload)
	entry.Digest = Digest(entry.Payload)
	entry.UpdatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[entry.Key]; ok {
		el.Value = &entry
		s.order.MoveToFront(el)
		return nil
	}

	s.items[entry.Key] = s.order.PushFront(&entry)
	for s.order.Len() > s.maxEntries {
		s.removeElement(s.order.Back())
	}
	return nil
}

// Len returns the number of entries currently held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *MemoryStore) removeElement(el *list.Element) {
	entry := el.Value.(*model.CacheEntry) //nolint:forcetypeassert // only *CacheEntry is stored
	delete(s.items, entry.Key)
	s.order.Remove(el)
}
