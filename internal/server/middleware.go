package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/YuminosukeSato/paxcast/internal/metricsdb"
	"github.com/YuminosukeSato/paxcast/pkg/log"
)

// MaxBodySize limits the size of request bodies.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// interceptor times every request and, once the response is complete,
// stores one operational metric row, logs the request and updates the
// Prometheus collectors. Recording failures are logged only.
func (s *Server) interceptor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			// Recoverer が再送出するのは http.ErrAbortHandler だけ
			rec := recover()
			elapsed := time.Since(start)
			status := ww.Status()
			switch {
			case rec != nil && status < http.StatusBadRequest:
				status = http.StatusInternalServerError
			case status == 0:
				status = http.StatusOK
			}
			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			url := requestURL(r)

			// クライアント切断後も記録する
			ctx := context.WithoutCancel(r.Context())
			err := s.backend.RecordRequest(ctx, metricsdb.OperationalMetric{
				Timestamp:      start.UTC(),
				Method:         r.Method,
				URL:            url,
				ResponseStatus: status,
				Latency:        elapsed.Seconds(),
			})
			if err != nil {
				s.logger.Error("recording operational metric failed", err, log.URLKey, url)
			}
			s.telemetry.ObserveRequest(r.Method, route, status, elapsed)

			s.logger.Info("http request",
				log.MethodKey, r.Method,
				log.URLKey, url,
				log.StatusKey, status,
				log.LatencySecondsKey, elapsed.Seconds(),
				log.RequestIDKey, chimw.GetReqID(r.Context()),
			)
			if rec != nil {
				panic(rec)
			}
		}()

		next.ServeHTTP(ww, r)
	})
}

// requestURL rebuilds the absolute URL the client requested.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
