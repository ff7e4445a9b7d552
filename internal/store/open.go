package store

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ppiankov/claimvault/internal/model"
)

// Backend names accepted by Open
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Open creates the store selected by cfg.Backend. promRegistry may be nil.
func Open(cfg model.StoreConfig, logger zerolog.Logger, promRegistry prometheus.Registerer) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendBadger, "":
		opts := []BadgerOptionFunc{
			WithBadgerDataDir(cfg.DataDir),
			WithBadgerLogger(logger),
			WithBadgerGC(cfg.GC),
		}
		if promRegistry != nil {
			opts = append(opts, WithBadgerPromRegistry(promRegistry))
		}
		return NewBadgerStore(opts...)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
