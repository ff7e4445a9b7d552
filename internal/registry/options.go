package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ppiankov/claimvault/internal/index"
)

// OptionFunc configures a Registry
type OptionFunc func(*Registry)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger zerolog.Logger) OptionFunc {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) OptionFunc {
	return func(r *Registry) {
		r.promRegistry = registry
	}
}

// WithIndex replaces the default singleton-key index
func WithIndex(x index.Index) OptionFunc {
	return func(r *Registry) {
		r.index = x
	}
}

// WithPageSizes sets the default and maximum page sizes for ListClaimIDsPage
func WithPageSizes(defaultSize, maxSize int) OptionFunc {
	return func(r *Registry) {
		if defaultSize > 0 {
			r.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			r.maxPageSize = maxSize
		}
	}
}
