// Package index maintains the ordered list of registered payment ids.
package index

import (
	"errors"
	"fmt"

	"github.com/ppiankov/claimvault/internal/codec"
	"github.com/ppiankov/claimvault/internal/model"
	"github.com/ppiankov/claimvault/internal/store"
)

// Index is an append-only, insertion-ordered list of payment ids.
// Appending an id that is already present adds a second entry.
type Index interface {
	// Append adds id at the end and returns the new length
	Append(rw store.ReadWriter, id model.PaymentID) (int, error)
	All(r store.Reader) ([]model.PaymentID, error)
	// Page returns ids in [offset, offset+limit) and the total length
	Page(r store.Reader, offset, limit int) ([]model.PaymentID, int, error)
}

// SingletonIndex keeps the whole list under one store key
type SingletonIndex struct {
	key []byte
}

// NewSingletonIndex returns an index stored under store.IndexKey()
func NewSingletonIndex() *SingletonIndex {
	return &SingletonIndex{key: store.IndexKey()}
}

// Append adds id at the end of the list
func (x *SingletonIndex) Append(rw store.ReadWriter, id model.PaymentID) (int, error) {
	ids, err := x.All(rw)
	if err != nil {
		return 0, err
	}
	ids = append(ids, id)

	data, err := codec.EncodeIndex(ids)
	if err != nil {
		return 0, err
	}
	if err := rw.Set(x.key, data); err != nil {
		return 0, fmt.Errorf("write index: %w", err)
	}
	return len(ids), nil
}

// All returns every id in insertion order; empty if nothing was appended
func (x *SingletonIndex) All(r store.Reader) ([]model.PaymentID, error) {
	data, err := r.Get(x.key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return []model.PaymentID{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return codec.DecodeIndex(data)
}

// Page returns a window of the list. Offsets past the end yield an empty page.
func (x *SingletonIndex) Page(r store.Reader, offset, limit int) ([]model.PaymentID, int, error) {
	if offset < 0 || limit < 0 {
		return nil, 0, fmt.Errorf("invalid page offset %d limit %d", offset, limit)
	}

	ids, err := x.All(r)
	if err != nil {
		return nil, 0, err
	}
	total := len(ids)
	if offset >= total {
		return []model.PaymentID{}, total, nil
	}
	end := total
	if limit < total-offset {
		end = offset + limit
	}
	return ids[offset:end], total, nil
}
