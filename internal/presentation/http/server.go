package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const (
	componentHTTPServer  = "http_server"
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// Server owns the mux and the middleware chain every route goes through:
// Trace → request logger → access log → HTTP metrics → handler.
type Server struct {
	mux     *http.ServeMux
	log     observability.Logger
	tracer  observability.Tracer
	prop    propagation.TextMapPropagator
	metrics http.Handler

	reqCounter   observability.Counter   // http_requests_total{method,route,status}
	durHistogram observability.Histogram // http_request_duration_seconds{method,route,status}
}

// Routes is implemented by each service's handler set.
type Routes interface {
	Register(s *Server)
}

func NewServer(tel observability.Observability, prop propagation.TextMapPropagator, metrics http.Handler) *Server {
	if tel == nil {
		tel = observability.Nop()
	}
	if prop == nil {
		prop = propagation.TraceContext{}
	}
	return &Server{
		mux:          http.NewServeMux(),
		log:          tel.Logger().With(observability.F("component", componentHTTPServer)),
		tracer:       tel.Tracer(),
		prop:         prop,
		metrics:      metrics,
		reqCounter:   tel.Metrics().Counter(observability.MHTTPRequests),
		durHistogram: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

// Router registers the service routes plus /health and /metrics.
func (s *Server) Router(routes ...Routes) http.Handler {
	for _, r := range routes {
		r.Register(s)
	}
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics)
	}
	return s.mux
}

// Handle wires route (a ServeMux pattern without method) behind the method guard and middlewares.
func (s *Server) Handle(method, route string, handler http.HandlerFunc) {
	label := method + " " + route
	wrapped := s.withTrace(
		ObservabilityMiddleware(s.log, func(r *http.Request) string {
			return r.Header.Get(headerRequestID)
		})(
			s.withAccessLog(
				s.withHTTPMetrics(handler),
			),
		),
	)

	s.mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		ctx := contextWithRoute(r.Context(), label)
		wrapped.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withAccessLog writes a single access log after the handler completes.
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), s.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace extracts W3C headers and starts the server span for the route.
func (s *Server) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parentCtx := s.prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		route := routeFromContext(parentCtx)

		ctx, span := s.tracer.Start(parentCtx, route,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
			attribute.String("http.user_agent", r.UserAgent()),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
		if lrw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(lrw.status))
		}
	})
}

// withHTTPMetrics records RED HTTP metrics with the instruments built in NewServer.
func (s *Server) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		s.reqCounter.Add(1, labels...)
		s.durHistogram.Observe(time.Since(start).Seconds(), labels...)
	})
}

var errBadRequestBody = errors.New("request body must be a JSON object")

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errBadRequestBody
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return errBadRequestBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
