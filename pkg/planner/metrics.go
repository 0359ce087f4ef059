package planner

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks Prometheus metrics for changeset application.
//
// All metrics use the "cvmfs_graft_planner_" prefix. Methods handle nil
// receiver gracefully, so a nil *Metrics acts as a no-op.
type Metrics struct {
	DeletionsTotal   prometheus.Counter
	AdditionsTotal   prometheus.Counter
	ApplyFailures    *prometheus.CounterVec
	ApplyDurationSec *prometheus.HistogramVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics creates and registers planner Prometheus metrics.
//
// If registerer is nil, prometheus.DefaultRegisterer is used. Idempotent
// via sync.Once.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}

		m := &Metrics{
			DeletionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cvmfs_graft_planner_deletions_total",
				Help: "Total deletion rows applied to the catalog",
			}),
			AdditionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cvmfs_graft_planner_additions_total",
				Help: "Total directory nodes visited while applying additions",
			}),
			ApplyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cvmfs_graft_planner_apply_failures_total",
				Help: "Total apply phases that returned an error",
			}, []string{"phase"}),
			ApplyDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "cvmfs_graft_planner_apply_duration_seconds",
				Help:    "Wall-clock duration of one apply phase",
				Buckets: prometheus.DefBuckets,
			}, []string{"phase"}),
		}

		registerer.MustRegister(m.DeletionsTotal, m.AdditionsTotal,
			m.ApplyFailures, m.ApplyDurationSec)

		metricsInstance = m
	})

	return metricsInstance
}

func (m *Metrics) startTimer() time.Time {
	return time.Now()
}

func (m *Metrics) observeDeletions(count int, start time.Time, err error) {
	if m == nil {
		return
	}
	m.DeletionsTotal.Add(float64(count))
	m.ApplyDurationSec.WithLabelValues("deletions").Observe(time.Since(start).Seconds())
	if err != nil {
		m.ApplyFailures.WithLabelValues("deletions").Inc()
	}
}

func (m *Metrics) observeAdditions(start time.Time, err error) {
	if m == nil {
		return
	}
	m.ApplyDurationSec.WithLabelValues("additions").Observe(time.Since(start).Seconds())
	if err != nil {
		m.ApplyFailures.WithLabelValues("additions").Inc()
	}
}
