package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orion_chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the relay.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orion_chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orion_chat_ws_active_connections",
			Help: "Number of active relay websocket connections.",
		},
	)
	relayEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orion_chat_relay_events_total",
			Help: "Total number of events handled by the relay, by event name.",
		},
		[]string{"event"},
	)
	engineEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orion_chat_engine_events_total",
			Help: "Total number of inbound events consumed by the session engine.",
		},
		[]string{"event"},
	)
	echoesSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orion_chat_engine_echoes_suppressed_total",
			Help: "Inbound private messages discarded as echoes of optimistic sends.",
		},
	)
	staleHistoryDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orion_chat_engine_stale_history_drops_total",
			Help: "History responses discarded because the channel selection changed.",
		},
	)
	malformedPayloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orion_chat_engine_malformed_payloads_total",
			Help: "Inbound events dropped because they could not be normalized.",
		},
	)
	historyFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orion_chat_history_fetch_duration_seconds",
			Help:    "History API fetch latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orion_chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		relayEventsTotal,
		engineEventsTotal,
		echoesSuppressedTotal,
		staleHistoryDropsTotal,
		malformedPayloadsTotal,
		historyFetchDuration,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncRelayEvent(event string) {
	relayEventsTotal.WithLabelValues(event).Inc()
}

func IncEngineEvent(event string) {
	engineEventsTotal.WithLabelValues(event).Inc()
}

func IncEchoSuppressed() {
	echoesSuppressedTotal.Inc()
}

func IncStaleHistoryDrop() {
	staleHistoryDropsTotal.Inc()
}

func IncMalformedPayload() {
	malformedPayloadsTotal.Inc()
}

func ObserveHistoryFetch(channel string, seconds float64) {
	historyFetchDuration.WithLabelValues(channel).Observe(seconds)
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
