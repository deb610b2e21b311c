package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics хранит счетчики HTTP и кэша главной ленты одного сервера.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal *prometheus.CounterVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	CacheErrors   prometheus.Counter
	LiveStreams   prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yatube",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "status"}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "yatube",
			Name:      "index_cache_hits_total",
			Help:      "Index feed pages served from the cache.",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: "yatube",
			Name:      "index_cache_misses_total",
			Help:      "Index feed pages recomputed.",
		}),
		CacheErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "yatube",
			Name:      "index_cache_errors_total",
			Help:      "Cache backend failures.",
		}),
		LiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "yatube",
			Name:      "comment_streams",
			Help:      "Open live comment streams.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// instrument считает запросы по шаблону маршрута chi (без завершающего слеша).
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	})
}
