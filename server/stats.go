// Prometheus metrics: request counters and latency recorded by the router,
// fan-out counters, and a collector which reports the state of the store
// at scrape time.

package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tinode/groups/server/store"
)

const metricsNamespace = "groups"

// Request latency distribution bounds (in milliseconds).
// "var" because Go does not support array constants.
var RequestLatencyDistribution = []float64{1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130,
	160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000}

// Request outcomes other than stanza error conditions.
const (
	outcomeOk      = "ok"
	outcomeFailure = "failure"
)

type metrics struct {
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	fanoutMessages prometheus.Counter
	fanoutFailures prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Number of processed requests by verb and outcome.",
		}, []string{"verb", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_ms",
			Help:      "Request processing time in milliseconds.",
			Buckets:   RequestLatencyDistribution,
		}, []string{"verb"}),
		fanoutMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fanout_messages_total",
			Help:      "Number of messages delivered to subscribers.",
		}),
		fanoutFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fanout_failures_total",
			Help:      "Number of messages which could not be delivered to subscribers.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.latency, m.fanoutMessages, m.fanoutFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observe(verb Verb, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(verb.String(), outcome).Inc()
	m.latency.WithLabelValues(verb.String()).Observe(float64(elapsed) / float64(time.Millisecond))
}

func (m *metrics) fanout(sent, failed int) {
	m.fanoutMessages.Add(float64(sent))
	m.fanoutFailures.Add(float64(failed))
}

// storeCollector reports the state of the store on every scrape.
type storeCollector struct {
	store   store.Storage
	started time.Time
	build   string

	up      *prometheus.Desc
	uptime  *prometheus.Desc
	version *prometheus.Desc
	groups  *prometheus.Desc
}

func newStoreCollector(st store.Storage, build string) *storeCollector {
	return &storeCollector{
		store:   st,
		started: time.Now(),
		build:   build,
		up: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "store", "up"),
			"If the store is reachable.",
			nil,
			nil,
		),
		uptime: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "uptime_seconds"),
			"Number of seconds since the server started.",
			nil,
			nil,
		),
		version: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "version"),
			"The version of this server.",
			[]string{"version"},
			nil,
		),
		groups: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "groups_count"),
			"Number of groups in the store.",
			nil,
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.uptime
	ch <- c.version
	ch <- c.groups
}

// Collect implements prometheus.Collector.
func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.CounterValue, time.Since(c.started).Seconds())
	ch <- prometheus.MustNewConstMetric(c.version, prometheus.GaugeValue, 1, c.build)

	groups, err := c.store.ListGroups()
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.groups, prometheus.GaugeValue, float64(len(groups)))
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
}
