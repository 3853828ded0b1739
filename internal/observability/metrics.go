package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 解码结果标签
const (
	ResultOK           = "ok"
	ResultTruncated    = "truncated"
	ResultFormatError  = "format_error"
	ResultMissingField = "missing_field"
	ResultError        = "error"
)

// 帧来源标签
const (
	TransportTCP  = "tcp"
	TransportHTTP = "http"
	TransportCLI  = "cli"
)

var (
	registerOnce sync.Once

	framesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bms_gateway",
			Subsystem: "decoder",
			Name:      "frames_total",
			Help:      "Decoded BMS log lines by result.",
		},
		[]string{"transport", "result"},
	)
	framesStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bms_gateway",
			Subsystem: "storage",
			Name:      "frames_total",
			Help:      "Frames written to the frame store.",
		},
		[]string{"success"},
	)
	framesDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bms_gateway",
			Subsystem: "dispatcher",
			Name:      "messages_total",
			Help:      "Messages handed to the message queue producer.",
		},
		[]string{"result"},
	)
	ingestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bms_gateway",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Time spent decoding and storing one line.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"transport"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bms_gateway",
			Subsystem: "tcp",
			Name:      "sessions",
			Help:      "Logged-in device sessions.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bms_gateway",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bms_gateway",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesDecoded, framesStored, framesDispatched, ingestDuration,
			activeSessions, httpRequests, httpDuration)
	})
}

func RecordDecode(transport, result string, duration time.Duration) {
	RegisterMetrics()
	framesDecoded.WithLabelValues(transport, result).Inc()
	ingestDuration.WithLabelValues(transport).Observe(duration.Seconds())
}

func RecordStore(success bool) {
	RegisterMetrics()
	framesStored.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func RecordDispatch(result string) {
	RegisterMetrics()
	framesDispatched.WithLabelValues(result).Inc()
}

func SetActiveSessions(n int) {
	RegisterMetrics()
	activeSessions.Set(float64(n))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
