// Package monitoring exports Prometheus metrics for table refreshes.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	refreshTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec

	tableRows     prometheus.Gauge
	tableComplete prometheus.Gauge
	lastRefresh   prometheus.Gauge
	pagesFetched  prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		refreshTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petitions",
			Name:      "refresh_total",
			Help:      "Total number of table refreshes by trigger and outcome.",
		}, []string{"trigger", "status"}),
		refreshDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "petitions",
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of a full fetch and derive.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"trigger"}),
		tableRows: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "petitions",
			Name:      "table_rows",
			Help:      "Rows in the published table.",
		}),
		tableComplete: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "petitions",
			Name:      "table_complete",
			Help:      "Whether the published table covers every listing page (1/0).",
		}),
		lastRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "petitions",
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time the published table was fetched.",
		}),
		pagesFetched: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "petitions",
			Name:      "table_pages",
			Help:      "Listing pages behind the published table.",
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

// Refresh is one finished rebuild.
type Refresh struct {
	Trigger   string
	Status    string
	Duration  time.Duration
	Rows      int
	Pages     int
	Complete  bool
	FetchedAt time.Time
}

// ObserveRefresh records a rebuild. Table gauges only move when a table
// was published, i.e. Rows > 0.
func ObserveRefresh(r Refresh) {
	m := getMetrics()
	m.refreshTotal.WithLabelValues(r.Trigger, r.Status).Inc()
	m.refreshDuration.WithLabelValues(r.Trigger).Observe(r.Duration.Seconds())
	if r.Rows == 0 {
		return
	}
	m.tableRows.Set(float64(r.Rows))
	m.pagesFetched.Set(float64(r.Pages))
	if r.Complete {
		m.tableComplete.Set(1)
	} else {
		m.tableComplete.Set(0)
	}
	m.lastRefresh.Set(float64(r.FetchedAt.Unix()))
}
