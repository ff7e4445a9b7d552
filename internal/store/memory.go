package store

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore implements Store in process memory. Contents are lost on Close.
type MemoryStore struct {
	cache  *gocache.Cache
	mu     sync.RWMutex
	closed bool
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		// No expiry and no janitor goroutine: entries live until Close
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// View runs fn against a consistent view of the store
func (s *MemoryStore) View(ctx context.Context, fn func(Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return fn(&memoryTxn{store: s})
}

// Update runs fn and applies its writes only if fn succeeds
func (s *MemoryStore) Update(ctx context.Context, fn func(ReadWriter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	txn := &memoryTxn{store: s, pending: make(map[string][]byte)}
	if err := fn(txn); err != nil {
		return err
	}

	for key, value := range txn.pending {
		s.cache.Set(key, value, gocache.NoExpiration)
	}
	return nil
}

// Close drops all entries
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cache.Flush()
	return nil
}

type memoryTxn struct {
	store   *MemoryStore
	pending map[string][]byte // nil for read-only transactions
}

func (t *memoryTxn) Get(key []byte) ([]byte, error) {
	if val, found := t.pending[string(key)]; found {
		return copyBytes(val), nil
	}
	if val, found := t.store.cache.Get(string(key)); found {
		return copyBytes(val.([]byte)), nil
	}
	return nil, ErrKeyNotFound
}

func (t *memoryTxn) Set(key, value []byte) error {
	t.pending[string(key)] = copyBytes(value)
	return nil
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
