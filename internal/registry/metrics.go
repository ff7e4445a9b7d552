package registry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/claimvault/internal/model"
	"github.com/ppiankov/claimvault/internal/store"
)

const metricNamePrefix = "claimvault_registry_"

// Failure reasons recorded by registrationFailures
const (
	reasonUnauthorized   = "unauthorized"
	reasonInvalidAmount  = "invalid_amount"
	reasonExpiryOverflow = "expiry_overflow"
	reasonEnvironment    = "environment"
)

type metrics struct {
	claimsRegistered     prometheus.Counter
	registrationFailures *prometheus.CounterVec
	indexLength          prometheus.Gauge
}

func (r *Registry) registerMetrics() {
	m := &metrics{
		claimsRegistered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "claims_registered_total",
				Help: "Total number of successful claim registrations",
			},
		),
		registrationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricNamePrefix + "registration_failures_total",
				Help: "Total number of rejected or failed claim registrations",
			},
			[]string{"reason"},
		),
		indexLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricNamePrefix + "index_length",
				Help: "Number of entries in the claim index after the last registration",
			},
		),
	}
	r.promRegistry.MustRegister(m.claimsRegistered, m.registrationFailures, m.indexLength)
	r.metrics = m
	r.seedIndexLength()
}

// seedIndexLength sets the gauge from an index that already exists in the store
func (r *Registry) seedIndexLength() {
	var ids []model.PaymentID
	err := r.store.View(context.Background(), func(rd store.Reader) error {
		var err error
		ids, err = r.index.All(rd)
		return err
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("could not read claim index for metrics")
		return
	}
	r.metrics.indexLength.Set(float64(len(ids)))
}

func (r *Registry) recordSuccess(indexLen int) {
	if r.metrics == nil {
		return
	}
	r.metrics.claimsRegistered.Inc()
	r.metrics.indexLength.Set(float64(indexLen))
}

func (r *Registry) recordFailure(reason string) {
	if r.metrics == nil {
		return
	}
	r.metrics.registrationFailures.WithLabelValues(reason).Inc()
}
