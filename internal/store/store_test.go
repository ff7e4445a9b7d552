package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ppiankov/claimvault/internal/model"
)

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"badger": func(t *testing.T) Store {
			s, err := NewBadgerStore()
			require.NoError(t, err)
			return s
		},
		"badger-disk": func(t *testing.T) Store {
			s, err := NewBadgerStore(WithBadgerDataDir(t.TempDir()), WithBadgerGC(false))
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer func() { require.NoError(t, s.Close()) }()

			// Missing keys
			err := s.View(ctx, func(r Reader) error {
				_, err := r.Get([]byte("missing"))
				return err
			})
			require.ErrorIs(t, err, ErrKeyNotFound)

			// Writes are visible inside the same transaction
			err = s.Update(ctx, func(rw ReadWriter) error {
				if err := rw.Set([]byte("a"), []byte("1")); err != nil {
					return err
				}
				val, err := rw.Get([]byte("a"))
				if err != nil {
					return err
				}
				assert.Equal(t, []byte("1"), val)
				return rw.Set([]byte("b"), []byte("2"))
			})
			require.NoError(t, err)

			// Overwrite
			require.NoError(t, s.Update(ctx, func(rw ReadWriter) error {
				return rw.Set([]byte("a"), []byte("3"))
			}))

			require.NoError(t, s.View(ctx, func(r Reader) error {
				a, err := r.Get([]byte("a"))
				require.NoError(t, err)
				assert.Equal(t, []byte("3"), a)

				b, err := r.Get([]byte("b"))
				require.NoError(t, err)
				assert.Equal(t, []byte("2"), b)
				return nil
			}))
		})
	}
}

func TestStoreUpdateIsAllOrNothing(t *testing.T) {
	boom := errors.New("boom")

	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer func() { require.NoError(t, s.Close()) }()

			err := s.Update(ctx, func(rw ReadWriter) error {
				if err := rw.Set([]byte("first"), []byte("x")); err != nil {
					return err
				}
				return boom
			})
			require.ErrorIs(t, err, boom)

			err = s.View(ctx, func(r Reader) error {
				_, err := r.Get([]byte("first"))
				return err
			})
			require.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer func() { require.NoError(t, s.Close()) }()

			value := []byte("abc")
			require.NoError(t, s.Update(ctx, func(rw ReadWriter) error {
				return rw.Set([]byte("k"), value)
			}))
			value[0] = 'z'

			require.NoError(t, s.View(ctx, func(r Reader) error {
				got, err := r.Get([]byte("k"))
				require.NoError(t, err)
				assert.Equal(t, []byte("abc"), got)
				got[1] = 'z'
				return nil
			}))

			require.NoError(t, s.View(ctx, func(r Reader) error {
				got, err := r.Get([]byte("k"))
				require.NoError(t, err)
				assert.Equal(t, []byte("abc"), got)
				return nil
			}))
		})
	}
}

func TestStoreHonorsCancelledContext(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer func() { require.NoError(t, s.Close()) }()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			called := false
			err := s.Update(ctx, func(rw ReadWriter) error {
				called = true
				return nil
			})
			require.ErrorIs(t, err, context.Canceled)
			assert.False(t, called)
		})
	}
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewBadgerStore(WithBadgerDataDir(dir))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, func(rw ReadWriter) error {
		return rw.Set(IndexKey(), []byte("persisted"))
	}))
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(WithBadgerDataDir(dir))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	require.NoError(t, s.View(ctx, func(r Reader) error {
		got, err := r.Get(IndexKey())
		require.NoError(t, err)
		assert.Equal(t, []byte("persisted"), got)
		return nil
	}))
}

func TestBadgerStoreMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	s, err := NewBadgerStore(WithBadgerPromRegistry(reg))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	require.NoError(t, s.Update(ctx, func(rw ReadWriter) error { return nil }))
	require.NoError(t, s.View(ctx, func(r Reader) error { return nil }))
	require.NoError(t, s.View(ctx, func(r Reader) error { return nil }))

	assert.InDelta(t, 1, testutil.ToFloat64(s.opsTotal.WithLabelValues("update")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(s.opsTotal.WithLabelValues("view")), 0)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []byte{byte(i)}
			assert.NoError(t, s.Update(ctx, func(rw ReadWriter) error {
				return rw.Set(key, key)
			}))
			assert.NoError(t, s.View(ctx, func(r Reader) error {
				_, err := r.Get(key)
				return err
			}))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, s.cache.ItemCount())
	require.NoError(t, s.Close())

	err := s.View(ctx, func(r Reader) error { return nil })
	require.ErrorIs(t, err, ErrClosed)
}

func TestOpen(t *testing.T) {
	s, err := Open(model.StoreConfig{Backend: BackendMemory}, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(model.StoreConfig{Backend: BackendBadger}, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(model.StoreConfig{Backend: "etcd"}, zerolog.Nop(), nil)
	require.Error(t, err)
}

func TestKeys(t *testing.T) {
	var id [32]byte
	id[0] = 0xaa
	key := ClaimKey(id)
	assert.Equal(t, "claim/", string(key[:6]))
	assert.Equal(t, byte(0xaa), key[6])
	assert.Len(t, key, 38)
	assert.Equal(t, "index/all", string(IndexKey()))
}
