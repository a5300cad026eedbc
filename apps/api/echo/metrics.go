package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "invasionlatina"

// Metrics holds the Prometheus collectors of one server.
// Each server has its own registry, so tests can build as many servers as they need.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	songRequests *prometheus.CounterVec
	songVotes    prometheus.Counter
	moderations  *prometheus.CounterVec
	checkins     *prometheus.CounterVec
	tickets      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "path"}),
		songRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "songs",
			Name:      "requests_total",
			Help:      "Song requests submitted, by outcome (created or appended).",
		}, []string{"outcome"}),
		songVotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "songs",
			Name:      "votes_total",
			Help:      "Votes recorded on song requests.",
		}),
		moderations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "songs",
			Name:      "moderations_total",
			Help:      "Song requests moderated, by new status.",
		}, []string{"status"}),
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "loyalty",
			Name:      "checkins_total",
			Help:      "Loyalty QR codes scanned at the door, by outcome.",
		}, []string{"outcome"}),
		tickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tickets",
			Name:      "sold_total",
			Help:      "Tickets sold, by category.",
		}, []string{"category"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.songRequests,
		m.songVotes,
		m.moderations,
		m.checkins,
		m.tickets,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

// Middleware records the count and the duration of the requests, labelled by route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if ctx.Path() == "/metrics" {
				return next(ctx)
			}

			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err) // commit the response so the status is known
			}

			method := ctx.Request().Method
			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			m.httpRequests.WithLabelValues(method, path, strconv.Itoa(ctx.Response().Status)).Inc()
			m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
