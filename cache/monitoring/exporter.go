// Package monitoring exposes a cache.Manager's statistics as Prometheus
// metrics. It is purely an observer: it reads Manager.GetStats and
// Manager.MemoryUsage on each scrape and never calls back into the
// manager.
//
// Each Exporter owns its own prometheus.Registry rather than registering
// into the global DefaultRegisterer, so that more than one Exporter —
// one per isolated cache.Manager instance — can coexist in the same
// process without a duplicate-registration panic.
package monitoring

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poly1603/ldesign-cache-sub004/cache"
)

const namespace = "ldesign_cache"

// Exporter is a prometheus.Collector that reports one cache.Manager's
// statistics on demand. It holds no cached values of its own: every
// Collect call re-reads the manager, so a scrape always reflects current
// state rather than pushing updates from the hot path.
type Exporter struct {
	manager *cache.Manager

	itemCount *prometheus.Desc
	usedBytes *prometheus.Desc
	available *prometheus.Desc
	hits      *prometheus.Desc
	misses    *prometheus.Desc
	hitRate   *prometheus.Desc
	expired   *prometheus.Desc

	memTotal    *prometheus.Desc
	memLimit    *prometheus.Desc
	memUsagePct *prometheus.Desc
	memPressure *prometheus.Desc
}

// NewExporter builds an Exporter for manager. Call Registry to obtain a
// *prometheus.Registry suitable for an http.Handler, or Collector to
// register it into a registry the caller already owns.
func NewExporter(manager *cache.Manager) *Exporter {
	return &Exporter{
		manager: manager,
		itemCount: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "engine", "item_count"),
			"Number of cache entries currently resident in an engine.",
			[]string{"engine"}, nil,
		),
		usedBytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "engine", "used_bytes"),
			"Bytes of serialized payload currently held by an engine.",
			[]string{"engine"}, nil,
		),
		available: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "engine", "available"),
			"1 if the engine is currently available for routing, 0 otherwise.",
			[]string{"engine"}, nil,
		),
		hits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "engine", "hits_total"),
			"Cumulative get hits served by an engine.",
			[]string{"engine"}, nil,
		),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "engine", "misses_total"),
			"Cumulative get misses recorded while polling an engine.",
			[]string{"engine"}, nil,
		),
		hitRate: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "hit_rate"),
			"Global hit rate: hits / (hits + misses), 0 with no requests.",
			nil, nil,
		),
		expired: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "expired_total"),
			"Cumulative count of entries removed on lazy TTL expiry.",
			nil, nil,
		),
		memTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "memory", "used_bytes"),
			"Total bytes accounted for across all engines by the memory manager.",
			nil, nil,
		),
		memLimit: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "memory", "limit_bytes"),
			"Configured memory limit; 0 means unlimited.",
			nil, nil,
		),
		memUsagePct: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "memory", "usage_ratio"),
			"Fraction of the memory limit currently in use.",
			nil, nil,
		),
		memPressure: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "memory", "pressure_level"),
			"Current memory pressure level: 0=low, 1=medium, 2=high, 3=critical.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.itemCount
	ch <- e.usedBytes
	ch <- e.available
	ch <- e.hits
	ch <- e.misses
	ch <- e.hitRate
	ch <- e.expired
	ch <- e.memTotal
	ch <- e.memLimit
	ch <- e.memUsagePct
	ch <- e.memPressure
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	stats := e.manager.GetStats(context.Background())
	for name, es := range stats.PerEngine {
		ch <- prometheus.MustNewConstMetric(e.itemCount, prometheus.GaugeValue, float64(es.ItemCount), name)
		ch <- prometheus.MustNewConstMetric(e.usedBytes, prometheus.GaugeValue, float64(es.Size), name)
		ch <- prometheus.MustNewConstMetric(e.available, prometheus.GaugeValue, boolToFloat(es.Available), name)
		ch <- prometheus.MustNewConstMetric(e.hits, prometheus.CounterValue, float64(es.Hits), name)
		ch <- prometheus.MustNewConstMetric(e.misses, prometheus.CounterValue, float64(es.Misses), name)
	}
	ch <- prometheus.MustNewConstMetric(e.hitRate, prometheus.GaugeValue, stats.HitRate)
	ch <- prometheus.MustNewConstMetric(e.expired, prometheus.CounterValue, float64(stats.ExpiredCount))

	mem := e.manager.MemoryUsage()
	ch <- prometheus.MustNewConstMetric(e.memTotal, prometheus.GaugeValue, float64(mem.TotalUsed))
	ch <- prometheus.MustNewConstMetric(e.memLimit, prometheus.GaugeValue, float64(mem.Limit))
	ch <- prometheus.MustNewConstMetric(e.memUsagePct, prometheus.GaugeValue, mem.UsagePercentage)
	ch <- prometheus.MustNewConstMetric(e.memPressure, prometheus.GaugeValue, float64(mem.Pressure))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Registry builds a fresh *prometheus.Registry containing just this
// Exporter, suitable for Handler. Each Exporter gets its own registry
// rather than sharing prometheus.DefaultRegisterer, so that a process
// embedding more than one cache.Manager never hits a duplicate-metric
// registration panic.
func (e *Exporter) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)
	return reg
}

// Handler returns an http.Handler serving this Exporter's metrics in the
// Prometheus text exposition format, for callers that want to mount it
// directly on a mux without building the registry themselves.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.Registry(), promhttp.HandlerOpts{})
}
