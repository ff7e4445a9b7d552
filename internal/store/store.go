package store

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when no value is stored under the key
var ErrKeyNotFound = errors.New("key not found")

// ErrClosed is returned for operations on a closed store
var ErrClosed = errors.New("store closed")

// Reader reads values inside a transaction
type Reader interface {
	Get(key []byte) ([]byte, error)
}

// ReadWriter reads and writes values inside a transaction. Writes are
// visible to later reads in the same transaction.
type ReadWriter interface {
	Reader
	Set(key, value []byte) error
}

// Store defines the interface for the persistent key-value store.
// Update applies all writes made by fn or none of them.
type Store interface {
	View(ctx context.Context, fn func(Reader) error) error
	Update(ctx context.Context, fn func(ReadWriter) error) error
	Close() error
}

// Key prefixes of the persisted layout
var (
	claimPrefix = []byte("claim/")
	indexKey    = []byte("index/all")
)

// ClaimKey returns the storage key for a claim id
func ClaimKey(id [32]byte) []byte {
	key := make([]byte, 0, len(claimPrefix)+len(id))
	key = append(key, claimPrefix...)
	return append(key, id[:]...)
}

// IndexKey returns the singleton key holding the claim index
func IndexKey() []byte {
	return append([]byte(nil), indexKey...)
}
