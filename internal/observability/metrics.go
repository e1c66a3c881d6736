package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conduit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "conduit",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	outboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conduit",
			Subsystem: "outbound",
			Name:      "messages_total",
			Help:      "Outbound messages by pipeline stage.",
		},
		[]string{"stage"},
	)
	bufferFlushes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "conduit",
			Subsystem: "buffer",
			Name:      "flushes_total",
			Help:      "Buffer flushes triggered by an open transition.",
		},
	)
	bufferDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "conduit",
			Subsystem: "buffer",
			Name:      "depth",
			Help:      "Messages currently held while disconnected.",
		},
	)
	inboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conduit",
			Subsystem: "inbound",
			Name:      "messages_total",
			Help:      "Inbound payloads by decode result.",
		},
		[]string{"result"},
	)
	connectionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conduit",
			Subsystem: "connection",
			Name:      "events_total",
			Help:      "Connection lifecycle events by ready state.",
		},
		[]string{"state"},
	)
	connectionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conduit",
			Subsystem: "connection",
			Name:      "errors_total",
			Help:      "Connection-level errors by kind.",
		},
		[]string{"kind"},
	)
	connectionOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "conduit",
			Subsystem: "connection",
			Name:      "open",
			Help:      "1 while the latest connection event is open.",
		},
	)
)

// Outbound stage labels.
const (
	StageBuffered    = "buffered"
	StageFlushed     = "flushed"
	StagePassthrough = "passthrough"
	StageSent        = "sent"
	StageSendFailed  = "send_failed"
	StageDropped     = "dropped"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			outboundMessages,
			bufferFlushes,
			bufferDepth,
			inboundMessages,
			connectionEvents,
			connectionErrors,
			connectionOpen,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordOutbound(stage string, n int) {
	RegisterMetrics()
	outboundMessages.WithLabelValues(stage).Add(float64(n))
}

func RecordFlush(count int) {
	RegisterMetrics()
	bufferFlushes.Inc()
	outboundMessages.WithLabelValues(StageFlushed).Add(float64(count))
}

func AddBufferDepth(delta int) {
	RegisterMetrics()
	bufferDepth.Add(float64(delta))
}

func RecordInbound(decoded bool) {
	RegisterMetrics()
	result := "decoded"
	if !decoded {
		result = "decode_failed"
	}
	inboundMessages.WithLabelValues(result).Inc()
}

func RecordConnectionEvent(state string, open bool) {
	RegisterMetrics()
	connectionEvents.WithLabelValues(state).Inc()
	if open {
		connectionOpen.Set(1)
		return
	}
	connectionOpen.Set(0)
}

func RecordConnectionError(kind string) {
	RegisterMetrics()
	connectionErrors.WithLabelValues(kind).Inc()
}
