package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name unless configured otherwise.
const DefaultNamespace = "evidencegraph"

// Collector records ingestion counters.
//
// Metrics:
//   - <ns>_ingest_items_emitted_total: items submitted to the sink, by kind
//   - <ns>_ingest_records_merged_total: decoded records folded into a parent, by type
//   - <ns>_ingest_discovered_items_total: items counted toward progress
//   - <ns>_ingest_discovered_bytes_total: bytes counted toward progress
//   - <ns>_ingest_previews_written_total: preview documents written, by kind
//   - <ns>_ingest_content_unresolved_total: declared content that could not be found
//
// All methods are safe on a nil *Collector.
type Collector struct {
	itemsEmitted      *prometheus.CounterVec
	recordsMerged     *prometheus.CounterVec
	discoveredItems   prometheus.Counter
	discoveredBytes   prometheus.Counter
	previewsWritten   *prometheus.CounterVec
	contentUnresolved prometheus.Counter
}

// NewCollector creates the ingestion metrics and registers them on registry.
// A nil registry gets a private one.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	const subsystem = "ingest"

	c := &Collector{
		itemsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "items_emitted_total",
				Help:      "Total number of items submitted to the sink",
			},
			[]string{"kind"},
		),
		recordsMerged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "records_merged_total",
				Help:      "Total number of decoded records merged into their parent",
			},
			[]string{"type"},
		),
		discoveredItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "discovered_items_total",
			Help:      "Total number of items counted toward progress",
		}),
		discoveredBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "discovered_bytes_total",
			Help:      "Total number of content bytes counted toward progress",
		}),
		previewsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "previews_written_total",
				Help:      "Total number of preview documents written",
			},
			[]string{"kind"},
		),
		contentUnresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "content_unresolved_total",
			Help:      "Total number of declared content paths that could not be resolved",
		}),
	}

	registry.MustRegister(
		c.itemsEmitted,
		c.recordsMerged,
		c.discoveredItems,
		c.discoveredBytes,
		c.previewsWritten,
		c.contentUnresolved,
	)
	return c
}

// ItemEmitted counts one submitted item of the given kind.
func (c *Collector) ItemEmitted(kind string) {
	if c == nil {
		return
	}
	c.itemsEmitted.WithLabelValues(kind).Inc()
}

// RecordMerged counts one merged record of the given decoded type.
func (c *Collector) RecordMerged(recordType string) {
	if c == nil {
		return
	}
	c.recordsMerged.WithLabelValues(recordType).Inc()
}

// Discovered adds to the progress counters.
func (c *Collector) Discovered(items int, bytes int64) {
	if c == nil {
		return
	}
	if items > 0 {
		c.discoveredItems.Add(float64(items))
	}
	if bytes > 0 {
		c.discoveredBytes.Add(float64(bytes))
	}
}

// PreviewWritten counts one preview document of the given kind.
func (c *Collector) PreviewWritten(kind string) {
	if c == nil {
		return
	}
	c.previewsWritten.WithLabelValues(kind).Inc()
}

// ContentUnresolved counts one missing content path.
func (c *Collector) ContentUnresolved() {
	if c == nil {
		return
	}
	c.contentUnresolved.Inc()
}
