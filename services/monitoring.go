package services

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	MONITORING_SVC          = "monitoring_svc"
	SERVICE_NAME            = "fixtureapp_backend"
	DEFAULT_PROMETHEUS_PORT = 2112
)

// HTTP Metrics
var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	httpRequestsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_active",
			Help: "Number of active concurrent HTTP requests",
		},
		[]string{"endpoint", "method"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Cache and upstream metrics
var (
	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixture_cache_hits_total",
			Help: "Fixture lookups served from the cache",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixture_cache_misses_total",
			Help: "Fixture lookups that required an upstream fetch",
		},
	)

	cacheSweepRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixture_cache_sweep_removed_total",
			Help: "Expired fixtures removed by the cache sweeper",
		},
	)

	upstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_calls_total",
			Help: "Calls dispatched to the fixtures provider",
		},
		[]string{"outcome"},
	)

	quotaUsed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_quota_used",
			Help: "Consumed upstream quota per window",
		},
		[]string{"window"},
	)

	quotaLimit = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_quota_limit",
			Help: "Configured upstream quota per window",
		},
		[]string{"window"},
	)

	requestQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "upstream_request_queue_depth",
			Help: "Requests waiting for a per-minute quota slot",
		},
	)
)

// System Metrics
var (
	heapAllocBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "heap_alloc_bytes",
			Help: "Heap memory allocated in bytes",
		},
	)

	gcTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gc_total",
			Help: "Total number of garbage collections",
		},
	)
)

type MonitoringService struct {
	appContext.DefaultService

	port     int
	register *prometheus.Registry

	limiter *RateLimitService

	closed      chan struct{}
	server      *fiber.App
	lastGCCount uint32
}

func (svc *MonitoringService) Id() string {
	return MONITORING_SVC
}

func (svc *MonitoringService) Start() error {
	svc.closed = make(chan struct{}, 1)

	portStr := os.Getenv("PROMETHEUS_PORT")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = DEFAULT_PROMETHEUS_PORT
	}
	svc.port = port

	if limiter, ok := svc.Service(RATE_LIMIT_SVC).(*RateLimitService); ok {
		svc.limiter = limiter
	}

	svc.register = svc.buildRegistry()

	go svc.updateRuntimeMetrics()

	svc.server = svc.buildServer()

	// Listen blocks until shutdown; the remaining services still need their
	// Start, so the metrics server runs in the background.
	go func() {
		log.Info().Int("port", svc.port).Msg("Prometheus metrics server started")
		if err := svc.server.Listen(fmt.Sprintf(":%v", svc.port)); err != nil {
			log.Error().Err(err).Msg("Prometheus metrics server stopped")
		}
	}()

	return nil
}

func (svc *MonitoringService) buildRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg.MustRegister(
		httpRequestsTotal,
		httpRequestsActive,
		httpRequestDurationSeconds,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheSweepRemovedTotal,
		upstreamCallsTotal,
		quotaUsed,
		quotaLimit,
		requestQueueDepth,
		heapAllocBytes,
		gcTotal,
	)

	return reg
}

func (svc *MonitoringService) buildServer() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
		},
	})
	app.Use(recover.New())

	app.Get("/metrics", svc.metricsHandler)
	app.Get("/health", svc.healthHandler)

	return app
}

func (svc *MonitoringService) Shutdown() {
	svc.closed <- struct{}{}
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

func (svc *MonitoringService) metricsHandler(c *fiber.Ctx) error {
	handler := promhttp.HandlerFor(svc.register, promhttp.HandlerOpts{})
	return adaptor.HTTPHandler(handler)(c)
}

func (svc *MonitoringService) healthHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "healthy",
		"service":   SERVICE_NAME,
		"timestamp": time.Now().Unix(),
	})
}

// updateRuntimeMetrics refreshes memory and quota gauges every 15 seconds.
func (svc *MonitoringService) updateRuntimeMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			heapAllocBytes.Set(float64(m.Alloc))
			if m.NumGC > svc.lastGCCount {
				gcTotal.Add(float64(m.NumGC - svc.lastGCCount))
				svc.lastGCCount = m.NumGC
			}

			if svc.limiter != nil {
				status := svc.limiter.Status()
				quotaUsed.WithLabelValues("daily").Set(float64(status.Daily.Used))
				quotaUsed.WithLabelValues("minute").Set(float64(status.Minute.Used))
				quotaLimit.WithLabelValues("daily").Set(float64(status.Daily.Limit))
				quotaLimit.WithLabelValues("minute").Set(float64(status.Minute.Limit))
				requestQueueDepth.Set(float64(status.QueueSize))
			}

		case <-svc.closed:
			return
		}
	}
}

func (svc *MonitoringService) CacheHit() {
	cacheHitsTotal.Inc()
}

func (svc *MonitoringService) CacheMiss() {
	cacheMissesTotal.Inc()
}

func (svc *MonitoringService) UpstreamCall(outcome string) {
	upstreamCallsTotal.WithLabelValues(outcome).Inc()
}

func (svc *MonitoringService) SweepRemoved(count int) {
	cacheSweepRemovedTotal.Add(float64(count))
}

// RecordRequest records HTTP request metrics
func (svc *MonitoringService) RecordRequest(method, endpoint, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	httpRequestDurationSeconds.WithLabelValues(endpoint, method, status).Observe(duration.Seconds())
}

// MonitoringMiddleware creates a Fiber middleware for monitoring HTTP requests
func MonitoringMiddleware(monitoringSvc *MonitoringService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		endpoint := c.Route().Path
		method := c.Method()

		httpRequestsActive.WithLabelValues(endpoint, method).Inc()
		defer httpRequestsActive.WithLabelValues(endpoint, method).Dec()

		err := c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Response().StatusCode())
		monitoringSvc.RecordRequest(method, endpoint, status, duration)

		return err
	}
}
