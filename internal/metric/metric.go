// Package metric bridges the runtime's counters to prometheus. The
// collector reads a MetricsReport snapshot on every scrape, so the
// runtime keeps its own lock-free counters and pays nothing between
// scrapes.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentgate/agentgate/protocol"
)

// Source produces metrics snapshots. *agent.Server satisfies it.
type Source interface {
	Metrics() protocol.MetricsReport
}

// Collector implements prometheus.Collector over a Source.
type Collector struct {
	src Source

	processed *prometheus.Desc
	blocked   *prometheus.Desc
	allowed   *prometheus.Desc
	errors    *prometheus.Desc
	active    *prometheus.Desc
	uptime    *prometheus.Desc
	avgLat    *prometheus.Desc
	p99Lat    *prometheus.Desc
}

// NewCollector creates a collector for the given source.
func NewCollector(src Source) *Collector {
	return &Collector{
		src:       src,
		processed: prometheus.NewDesc("agentgate_events_processed_total", "Events dispatched to the capability.", nil, nil),
		blocked:   prometheus.NewDesc("agentgate_decisions_blocked_total", "Blocking decisions emitted.", nil, nil),
		allowed:   prometheus.NewDesc("agentgate_decisions_allowed_total", "Allowing decisions emitted.", nil, nil),
		errors:    prometheus.NewDesc("agentgate_capability_errors_total", "Capability failures (panics and timeouts).", nil, nil),
		active:    prometheus.NewDesc("agentgate_active_requests", "Live request contexts.", nil, nil),
		uptime:    prometheus.NewDesc("agentgate_uptime_seconds", "Seconds since the runtime started.", nil, nil),
		avgLat:    prometheus.NewDesc("agentgate_capability_latency_avg_ms", "Average capability call latency over the sliding window.", nil, nil),
		p99Lat:    prometheus.NewDesc("agentgate_capability_latency_p99_ms", "99th percentile capability call latency over the sliding window.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.processed
	ch <- c.blocked
	ch <- c.allowed
	ch <- c.errors
	ch <- c.active
	ch <- c.uptime
	ch <- c.avgLat
	ch <- c.p99Lat
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	r := c.src.Metrics()
	ch <- prometheus.MustNewConstMetric(c.processed, prometheus.CounterValue, float64(r.Processed))
	ch <- prometheus.MustNewConstMetric(c.blocked, prometheus.CounterValue, float64(r.Blocked))
	ch <- prometheus.MustNewConstMetric(c.allowed, prometheus.CounterValue, float64(r.Allowed))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(r.Errors))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(r.Active))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, r.UptimeSeconds)
	ch <- prometheus.MustNewConstMetric(c.avgLat, prometheus.GaugeValue, r.AvgLatencyMS)
	ch <- prometheus.MustNewConstMetric(c.p99Lat, prometheus.GaugeValue, r.P99LatencyMS)
}
