package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds every Prometheus collector the demo service exposes.
// Registration happens once, in Register, over the default registerer.
type Metrics struct {
	logger *zap.Logger

	// World/tick metrics
	TickDuration prometheus.Histogram
	EntityCount  prometheus.Gauge
	SubscribeEnters prometheus.Counter
	SubscribeLeaves prometheus.Counter
	BroadcastSize   prometheus.Histogram

	// Gateway metrics
	ActiveConnections prometheus.Gauge
	MessagesReceived  prometheus.Counter
	MessagesSent      prometheus.Counter
	ConnectionErrors  prometheus.Counter

	// Persistence metrics
	RedisOperations    *prometheus.CounterVec
	PostgresOperations *prometheus.CounterVec
	OutboxEvents       prometheus.Counter
}

// NewMetrics constructs every collector but does not register them; call
// Register once a *http.ServeMux (or the default registerer) is ready.
func NewMetrics(logger *zap.Logger) *Metrics {
	return &Metrics{
		logger: logger,
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aoi_tick_duration_seconds",
			Help:    "Duration of world tick processing",
			Buckets: prometheus.DefBuckets,
		}),
		EntityCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aoi_entity_count",
			Help: "Number of entities currently tracked by the index",
		}),
		SubscribeEnters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoi_subscribe_enters_total",
			Help: "Total number of enter callbacks fired by the delta engine",
		}),
		SubscribeLeaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoi_subscribe_leaves_total",
			Help: "Total number of leave callbacks fired by the delta engine",
		}),
		BroadcastSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aoi_broadcast_size_bytes",
			Help:    "Size of broadcast messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000},
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aoi_active_connections",
			Help: "Number of active WebSocket connections",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoi_messages_received_total",
			Help: "Total number of messages received from clients",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoi_messages_sent_total",
			Help: "Total number of messages sent to clients",
		}),
		ConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoi_connection_errors_total",
			Help: "Total number of connection errors",
		}),
		RedisOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aoi_redis_operations_total",
			Help: "Total number of Redis operations",
		}, []string{"operation", "status"}),
		PostgresOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aoi_postgres_operations_total",
			Help: "Total number of PostgreSQL operations",
		}, []string{"operation", "status"}),
		OutboxEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aoi_outbox_events_total",
			Help: "Total number of outbox events processed",
		}),
	}
}

// Register registers every collector with the default registerer.
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.TickDuration,
		m.EntityCount,
		m.SubscribeEnters,
		m.SubscribeLeaves,
		m.BroadcastSize,
		m.ActiveConnections,
		m.MessagesReceived,
		m.MessagesSent,
		m.ConnectionErrors,
		m.RedisOperations,
		m.PostgresOperations,
		m.OutboxEvents,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			m.logger.Error("failed to register metric", zap.Error(err))
			return err
		}
	}

	m.logger.Info("metrics registered successfully")
	return nil
}

// StartMetricsServer blocks serving /metrics on addr until the listener
// fails or is closed by the caller.
func (m *Metrics) StartMetricsServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	m.logger.Info("starting metrics server", zap.String("addr", addr))
	return server.ListenAndServe()
}

func (m *Metrics) RecordTickDuration(d time.Duration) { m.TickDuration.Observe(d.Seconds()) }
func (m *Metrics) SetEntityCount(count int)           { m.EntityCount.Set(float64(count)) }
func (m *Metrics) IncrementSubscribeEnters()          { m.SubscribeEnters.Inc() }
func (m *Metrics) IncrementSubscribeLeaves()          { m.SubscribeLeaves.Inc() }
func (m *Metrics) RecordBroadcastSize(size int)       { m.BroadcastSize.Observe(float64(size)) }
func (m *Metrics) SetActiveConnections(count int)     { m.ActiveConnections.Set(float64(count)) }
func (m *Metrics) IncrementMessagesReceived()         { m.MessagesReceived.Inc() }
func (m *Metrics) IncrementMessagesSent()             { m.MessagesSent.Inc() }
func (m *Metrics) IncrementConnectionErrors()         { m.ConnectionErrors.Inc() }
func (m *Metrics) IncrementOutboxEvents()             { m.OutboxEvents.Inc() }

func (m *Metrics) RecordRedisOperation(operation, status string) {
	m.RedisOperations.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) RecordPostgresOperation(operation, status string) {
	m.PostgresOperations.WithLabelValues(operation, status).Inc()
}
