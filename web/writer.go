package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	apiVersionHeader = "Docker-Distribution-API-Version"
	apiVersion       = "registry/2.0"
	requestIDHeader  = "X-Request-Id"
)

type contextKey int

const (
	loggerKey contextKey = iota
)

var metricRequest = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "rpm_registry",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP requests with operation, response code, and duration until response status code is written, in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.100, 0.5, 1, 5, 30, 120},
	},
	[]string{"method", "op", "code"},
)

// loggingWriter keeps track of a response and observes the request duration
// once the status code is written.
type loggingWriter struct {
	W     http.ResponseWriter
	Start time.Time
	R     *http.Request

	// Set by the router.
	Op string

	StatusCode int
	Size       int64
}

func (w *loggingWriter) Header() http.Header {
	return w.W.Header()
}

func (w *loggingWriter) setStatusCode(statusCode int) {
	if w.StatusCode != 0 {
		return
	}

	method := strings.ToLower(w.R.Method)
	switch method {
	case "head", "get", "post", "put", "patch", "delete":
	default:
		method = "(other)"
	}

	w.StatusCode = statusCode
	metricRequest.WithLabelValues(method, w.Op, fmt.Sprintf("%d", w.StatusCode)).Observe(time.Since(w.Start).Seconds())
}

func (w *loggingWriter) Write(buf []byte) (int, error) {
	if w.StatusCode == 0 {
		w.setStatusCode(http.StatusOK)
	}

	n, err := w.W.Write(buf)
	w.Size += int64(n)
	return n, err
}

func (w *loggingWriter) WriteHeader(statusCode int) {
	w.setStatusCode(statusCode)
	w.W.WriteHeader(statusCode)
}

type server struct {
	log    log.FieldLogger
	router *mux.Router
}

func (s *server) ServeHTTP(xw http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	w := &loggingWriter{
		W:     xw,
		Start: time.Now(),
		R:     r,
		Op:    "(unmatched)",
	}

	l := s.log.WithFields(log.Fields{
		"request_id": id,
		"method":     r.Method,
		"path":       r.URL.Path,
	})
	w.Header().Set(apiVersionHeader, apiVersion)
	w.Header().Set(requestIDHeader, id)
	s.router.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), loggerKey, l)))
	if w.StatusCode == 0 {
		w.setStatusCode(http.StatusOK)
	}

	l.WithFields(log.Fields{
		"op":       w.Op,
		"status":   w.StatusCode,
		"size":     w.Size,
		"duration": time.Since(w.Start),
	}).Debug("request served")
}

// routeName labels the request with the name of the matched route.
func routeName(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lw, ok := w.(*loggingWriter); ok {
			if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
				lw.Op = route.GetName()
			}
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(r *http.Request, fallback log.FieldLogger) log.FieldLogger {
	if l, ok := r.Context().Value(loggerKey).(log.FieldLogger); ok {
		return l
	}

	return fallback
}
