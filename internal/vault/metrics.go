package vault

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments a vault writer. Optional: a nil *Metrics disables
// instrumentation.
type Metrics struct {
	// MessagesAppended counts messages framed into the commit buffer.
	MessagesAppended prometheus.Counter

	// BytesCommitted counts logical bytes made durable by flushes.
	BytesCommitted prometheus.Counter

	// PagesWritten counts physical pages written, tail rewrites
	// included.
	PagesWritten prometheus.Counter

	// CommittedLength tracks the last published checkpoint value.
	CommittedLength prometheus.Gauge
}

// NewMetrics registers the writer metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesAppended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "messagevault",
			Name:      "messages_appended_total",
			Help:      "Messages framed into the commit buffer.",
		}),
		BytesCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "messagevault",
			Name:      "bytes_committed_total",
			Help:      "Logical bytes made durable by flushes.",
		}),
		PagesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "messagevault",
			Name:      "pages_written_total",
			Help:      "Physical pages written, including tail rewrites.",
		}),
		CommittedLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "messagevault",
			Name:      "committed_length_bytes",
			Help:      "Last published checkpoint value.",
		}),
	}
}
