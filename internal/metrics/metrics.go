package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	CyclesTotal   prometheus.Counter
	CycleFailures prometheus.Counter
	StaleFeeds    prometheus.Gauge
	LastCycleUnix prometheus.Gauge

	SnapshotWrites    prometheus.Counter
	SnapshotWriteErrs prometheus.Counter
	NATSConnected     prometheus.Gauge

	FetchDuration prometheus.Histogram
	CycleDuration prometheus.Histogram

	FeedsConfigured prometheus.Gauge
	UpdateInterval  prometheus.Gauge // seconds
	BackoffInterval prometheus.Gauge // seconds
}

func NewCollector(feedCount int, updateInterval, backoffInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poller_cycles_total",
			Help: "Total polling cycles completed successfully.",
		}),
		CycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poller_cycle_failures_total",
			Help: "Total polling cycles that failed and were retried.",
		}),
		StaleFeeds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poller_stale_feeds",
			Help: "Feeds whose generation timestamp did not advance in the last cycle.",
		}),
		LastCycleUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poller_last_cycle_timestamp_seconds",
			Help: "Unix time of the last successful cycle.",
		}),
		SnapshotWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poller_snapshot_writes_total",
			Help: "Total feed snapshots written.",
		}),
		SnapshotWriteErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poller_snapshot_write_errors_total",
			Help: "Total snapshot write errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poller_nats_connected",
			Help: "1 if the NATS connection is established, 0 otherwise.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poller_feed_fetch_duration_seconds",
			Help:    "Duration of a single feed fetch and normalize.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poller_cycle_duration_seconds",
			Help:    "Duration of a full fetch-all/persist-all cycle.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		FeedsConfigured: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poller_feeds_configured",
			Help: "Number of upstream feeds polled each cycle.",
		}),
		UpdateInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poller_update_interval_seconds",
			Help: "Sleep between successful cycles in seconds.",
		}),
		BackoffInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poller_backoff_interval_seconds",
			Help: "Sleep after a failed cycle in seconds.",
		}),
	}

	reg.MustRegister(
		c.CyclesTotal, c.CycleFailures, c.StaleFeeds, c.LastCycleUnix,
		c.SnapshotWrites, c.SnapshotWriteErrs, c.NATSConnected,
		c.FetchDuration, c.CycleDuration,
		c.FeedsConfigured, c.UpdateInterval, c.BackoffInterval,
	)

	c.FeedsConfigured.Set(float64(feedCount))
	c.UpdateInterval.Set(updateInterval.Seconds())
	c.BackoffInterval.Set(backoffInterval.Seconds())

	return c
}

// NATSSetConnected implements store.ConnMetrics.
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return srv
}
