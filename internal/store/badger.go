package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const badgerMetricNamePrefix = "claimvault_store_badger_"

// BadgerStore implements persistent storage on badger. Without a data
// directory the database is kept in memory.
type BadgerStore struct {
	db           *badger.DB
	logger       zerolog.Logger
	promRegistry prometheus.Registerer
	opsTotal     *prometheus.CounterVec
	dataDir      string
	gcEnabled    bool
	gcInterval   time.Duration
	gcStopCh     chan struct{}
	gcWg         sync.WaitGroup
}

// BadgerOptionFunc configures a BadgerStore
type BadgerOptionFunc func(*BadgerStore)

// WithBadgerDataDir specifies the directory to persist data in
func WithBadgerDataDir(dir string) BadgerOptionFunc {
	return func(s *BadgerStore) {
		s.dataDir = dir
	}
}

// WithBadgerLogger specifies the logger for store and badger messages
func WithBadgerLogger(logger zerolog.Logger) BadgerOptionFunc {
	return func(s *BadgerStore) {
		s.logger = logger
	}
}

// WithBadgerGC enables or disables periodic value log GC
func WithBadgerGC(enabled bool) BadgerOptionFunc {
	return func(s *BadgerStore) {
		s.gcEnabled = enabled
	}
}

// WithBadgerPromRegistry specifies the prometheus registry to use for metrics
func WithBadgerPromRegistry(registry prometheus.Registerer) BadgerOptionFunc {
	return func(s *BadgerStore) {
		s.promRegistry = registry
	}
}

// NewBadgerStore opens a badger database
func NewBadgerStore(opts ...BadgerOptionFunc) (*BadgerStore, error) {
	s := &BadgerStore{
		logger:     zerolog.Nop(),
		gcEnabled:  true,
		gcInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	var badgerOpts badger.Options
	if s.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
		// GC is not supported for in-memory databases
		s.gcEnabled = false
	} else {
		if _, err := os.Stat(s.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read data dir: %w", err)
			}
			if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(filepath.Join(s.dataDir, "claims"))
	}
	badgerOpts = badgerOpts.
		WithLogger(newBadgerLogger(s.logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s.db = db

	if s.promRegistry != nil {
		s.registerMetrics()
	}
	if s.gcEnabled {
		s.gcStopCh = make(chan struct{})
		s.gcWg.Add(1)
		go s.runGC()
	}
	return s, nil
}

func (s *BadgerStore) registerMetrics() {
	s.opsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: badgerMetricNamePrefix + "ops_total",
			Help: "Total number of badger store operations",
		},
		[]string{"op"},
	)
	s.promRegistry.MustRegister(s.opsTotal)
}

func (s *BadgerStore) countOp(op string) {
	if s.opsTotal != nil {
		s.opsTotal.WithLabelValues(op).Inc()
	}
}

func (s *BadgerStore) runGC() {
	defer s.gcWg.Done()

	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				// Keep collecting while there is something to rewrite
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn().Err(err).Msg("badger value log GC failed")
				}
				break
			}
		case <-s.gcStopCh:
			return
		}
	}
}

// View runs fn in a read-only badger transaction
func (s *BadgerStore) View(ctx context.Context, fn func(Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.countOp("view")
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTxn{txn: txn})
	})
}

// Update runs fn in a read-write badger transaction committed on success
func (s *BadgerStore) Update(ctx context.Context, fn func(ReadWriter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.countOp("update")
	return s.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTxn{txn: txn})
	})
}

// Close stops GC and closes the database
func (s *BadgerStore) Close() error {
	if s.gcStopCh != nil {
		close(s.gcStopCh)
		s.gcWg.Wait()
		s.gcStopCh = nil
	}
	return s.db.Close()
}

type badgerTxn struct {
	txn *badger.Txn
}

func (t *badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *badgerTxn) Set(key, value []byte) error {
	// badger keeps references until commit
	return t.txn.Set(copyBytes(key), copyBytes(value))
}
