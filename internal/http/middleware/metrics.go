package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/gestaozabele/registrocivil/internal/metrics"
)

// Metrics observa duração das requisições no histograma Prometheus.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			m.ObserveRequest(r.Method, strconv.Itoa(ww.Status()), time.Since(start).Seconds())
		})
	}
}
