// metrics.go — Prometheus HTTP метрики Cumulus.
// Регистрирует метрики: cumulus_http_requests_total,
// cumulus_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/cumulus/internal/storage/filekey"
)

// HTTP метрики Cumulus
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cumulus_http_requests_total",
			Help: "Общее количество HTTP-запросов к Cumulus",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cumulus_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Cumulus в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

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

// normalizePath заменяет ключи файлов в пути на {key}, а произвольные
// аргументы поисковых маршрутов на {arg}, чтобы кардинальность лейблов
// оставалась ограниченной.
// /api/v1/files/7d097956... → /api/v1/files/{key}
// /api/v1/by-name/rapport  → /api/v1/by-name/{arg}
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/search", "/api/v1/files", "/api/v1/folders":
		return path
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if filekey.IsKey(seg) {
			segments[i] = "{key}"
		}
	}
	path = strings.Join(segments, "/")

	// Поисковые маршруты с аргументом в пути
	const apiPrefix = "/api/v1/by-"
	if strings.HasPrefix(path, apiPrefix) {
		rest := strings.TrimPrefix(path, "/api/v1/")
		field, _, hasArg := strings.Cut(rest, "/")
		if hasArg {
			return "/api/v1/" + field + "/{arg}"
		}
	}

	return path
}
