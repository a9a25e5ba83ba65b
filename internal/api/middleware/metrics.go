// metrics.go — Prometheus HTTP метрики для Upload Module.
// Регистрирует метрики: um_http_requests_total, um_http_request_duration_seconds.
// Бизнес-метрики (um_active_sessions, um_chunk_bytes_total и др.)
// регистрируются здесь же и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "um_http_requests_total",
			Help: "Общее количество HTTP-запросов к Upload Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "um_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Upload Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// ActiveSessions — текущее количество активных сессий загрузки (gauge).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "um_active_sessions",
			Help: "Текущее количество активных сессий загрузки",
		},
	)

	// SessionOperationsTotal — общее количество операций над сессиями.
	SessionOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "um_session_operations_total",
			Help: "Общее количество операций над сессиями загрузки",
		},
		[]string{"operation", "result"},
	)

	// ChunkBytesTotal — суммарное количество новых принятых байт.
	// Идемпотентные повторы диапазонов не учитываются.
	ChunkBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "um_chunk_bytes_total",
			Help: "Суммарное количество новых принятых байт",
		},
	)

	// SessionsReapedTotal — количество сессий, вычищенных по TTL.
	SessionsReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "um_sessions_reaped_total",
			Help: "Количество сессий загрузки, вычищенных по TTL",
		},
	)

	// OrphansCleanedTotal — количество удалённых осиротевших staging-файлов.
	OrphansCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "um_orphans_cleaned_total",
			Help: "Количество удалённых осиротевших staging-файлов",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет UUID-сегменты пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /upload/a1b2c3d4-e5f6-7890-abcd-ef1234567890/status → /upload/{id}/status
func normalizePath(path string) string {
	switch {
	case path == "/health/live":
		return "/health/live"
	case path == "/health/ready":
		return "/health/ready"
	case path == "/metrics":
		return "/metrics"
	case path == "/api/v1/info":
		return "/api/v1/info"
	case path == "/upload/init":
		return "/upload/init"
	case path == "/ws/uploads":
		return "/ws/uploads"
	case len(path) > len("/upload/") && isUUIDSegment(path, "/upload/"):
		suffix := path[len("/upload/")+36:]
		switch suffix {
		case "":
			return "/upload/{id}"
		case "/status":
			return "/upload/{id}/status"
		case "/complete":
			return "/upload/{id}/complete"
		case "/cancel":
			return "/upload/{id}/cancel"
		}
	}
	return path
}

// isUUIDSegment проверяет, начинается ли сегмент пути после prefix с UUID.
func isUUIDSegment(path, prefix string) bool {
	if len(path) < len(prefix)+36 {
		return false
	}
	segment := path[len(prefix) : len(prefix)+36]
	// Проверяем формат UUID: 8-4-4-4-12
	if len(segment) != 36 {
		return false
	}
	for i, c := range segment {
		if i == 8 || i == 13 || i == 18 || i == 23 {
			if c != '-' {
				return false
			}
		} else {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
				return false
			}
		}
	}
	return true
}
