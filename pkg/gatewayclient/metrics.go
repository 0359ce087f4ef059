package gatewayclient

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks Prometheus metrics for gateway lease operations.
//
// All metrics use the "cvmfs_graft_gateway_" prefix. Methods handle nil
// receiver gracefully, so a nil *Metrics acts as a no-op.
type Metrics struct {
	LeasesAcquired  prometheus.Counter
	LeasesBusy      prometheus.Counter
	RefreshTotal    prometheus.Counter
	RefreshFailures prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics creates and registers gateway client Prometheus metrics.
//
// If registerer is nil, prometheus.DefaultRegisterer is used. Idempotent
// via sync.Once.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}

		m := &Metrics{
			LeasesAcquired: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cvmfs_graft_gateway_leases_acquired_total",
				Help: "Total leases successfully acquired",
			}),
			LeasesBusy: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cvmfs_graft_gateway_leases_busy_total",
				Help: "Total busy replies received while acquiring a lease",
			}),
			RefreshTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cvmfs_graft_gateway_refresh_total",
				Help: "Total successful lease refreshes",
			}),
			RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cvmfs_graft_gateway_refresh_failures_total",
				Help: "Total lease refresh failures",
			}),
		}

		registerer.MustRegister(m.LeasesAcquired, m.LeasesBusy, m.RefreshTotal, m.RefreshFailures)
		metricsInstance = m
	})

	return metricsInstance
}

func (m *Metrics) incAcquired() {
	if m == nil {
		return
	}
	m.LeasesAcquired.Inc()
}

func (m *Metrics) incBusy() {
	if m == nil {
		return
	}
	m.LeasesBusy.Inc()
}

func (m *Metrics) incRefreshed() {
	if m == nil {
		return
	}
	m.RefreshTotal.Inc()
}

func (m *Metrics) incRefreshFailed() {
	if m == nil {
		return
	}
	m.RefreshFailures.Inc()
}
