package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/precache"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，同时实现 precache.Recorder
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 缓存指标
	lookupsTotal *prometheus.CounterVec
	evictions    prometheus.Counter

	// 队列指标
	enqueueTotal *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	inFlight     prometheus.Gauge

	// 生成指标
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec

	// 失效指标
	invalidationsTotal prometheus.Counter
	invalidatedEntries prometheus.Counter

	// 生成日志数据库连接池
	dbConnections *prometheus.GaugeVec
	dbWaitCount   *prometheus.GaugeVec

	logger *zap.Logger
}

var _ precache.Recorder = (*Collector)(nil)

// NewCollector 创建指标收集器并注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegisterer(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegisterer 创建指标收集器并注册到指定 Registerer
func NewCollectorWithRegisterer(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 缓存指标
	c.lookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precache",
			Name:      "lookups_total",
			Help:      "Total number of result cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	c.evictions = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precache",
			Name:      "evictions_total",
			Help:      "Total number of results evicted for capacity",
		},
	)

	// 队列指标
	c.enqueueTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precache",
			Name:      "enqueue_total",
			Help:      "Total number of speculative requests offered to the queue",
		},
		[]string{"priority", "outcome"}, // outcome: accepted, skipped
	)

	c.queueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "precache",
			Name:      "queue_depth",
			Help:      "Number of requests waiting in the queue",
		},
	)

	c.inFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "precache",
			Name:      "in_flight",
			Help:      "Number of requests handed to the worker",
		},
	)

	// 生成指标
	c.generationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precache",
			Name:      "generations_total",
			Help:      "Total number of generator calls",
		},
		[]string{"source", "status"}, // status: success, error, discarded
	)

	c.generationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "precache",
			Name:      "generation_duration_seconds",
			Help:      "Generator call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	// 失效指标
	c.invalidationsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precache",
			Name:      "invalidations_total",
			Help:      "Total number of trajectory invalidations",
		},
	)

	c.invalidatedEntries = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "precache",
			Name:      "invalidated_entries_total",
			Help:      "Total number of cached results dropped by invalidation",
		},
	)

	// 数据库连接池指标
	c.dbConnections = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "db_connections",
			Help:      "Journal database connections by state",
		},
		[]string{"database", "state"}, // state: open, in_use, idle
	)

	c.dbWaitCount = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "db_wait_count",
			Help:      "Cumulative number of waits for a journal database connection",
		},
		[]string{"database"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🔮 引擎事件记录（precache.Recorder）
// =============================================================================

// RecordLookup 记录一次缓存查询
func (c *Collector) RecordLookup(hit bool) {
	if hit {
		c.lookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	c.lookupsTotal.WithLabelValues("miss").Inc()
}

// RecordEnqueue 记录一次入队尝试
func (c *Collector) RecordEnqueue(priority precache.Priority, accepted bool) {
	outcome := "skipped"
	if accepted {
		outcome = "accepted"
	}
	c.enqueueTotal.WithLabelValues(priority.String(), outcome).Inc()
}

// RecordGeneration 记录一次生成器调用
func (c *Collector) RecordGeneration(ev precache.GenerationEvent) {
	status := "success"
	switch {
	case ev.Err != nil:
		status = "error"
	case ev.Discarded:
		status = "discarded"
	}
	source := string(ev.Source)
	c.generationsTotal.WithLabelValues(source, status).Inc()
	c.generationDuration.WithLabelValues(source).Observe(ev.Duration.Seconds())
}

// RecordEviction 记录容量淘汰
func (c *Collector) RecordEviction(n int) {
	if n > 0 {
		c.evictions.Add(float64(n))
	}
}

// RecordInvalidation 记录一次轨迹失效
func (c *Collector) RecordInvalidation(cleared int) {
	c.invalidationsTotal.Inc()
	c.invalidatedEntries.Add(float64(cleared))
}

// RecordQueueState 记录队列深度与在途数
func (c *Collector) RecordQueueState(depth, inFlight int) {
	c.queueDepth.Set(float64(depth))
	c.inFlight.Set(float64(inFlight))
}

// RecordDBPool 记录生成日志连接池快照
func (c *Collector) RecordDBPool(database string, open, inUse, idle int, waitCount int64) {
	c.dbConnections.WithLabelValues(database, "open").Set(float64(open))
	c.dbConnections.WithLabelValues(database, "in_use").Set(float64(inUse))
	c.dbConnections.WithLabelValues(database, "idle").Set(float64(idle))
	c.dbWaitCount.WithLabelValues(database).Set(float64(waitCount))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
