package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	routeMeter       = otel.Meter("wealthdash/http")
	routeDuration, _ = routeMeter.Float64Histogram("wealthdash.http.route.duration",
		metric.WithDescription("Request duration per matched route"),
		metric.WithUnit("s"),
	)
	routeRequests, _ = routeMeter.Int64Counter("wealthdash.http.route.requests",
		metric.WithDescription("Requests per matched route and status"),
	)
)

// Instrument traces every request through otelhttp and records per-route
// metrics. The span is renamed to the chi pattern once routing is done so
// item ids do not explode span cardinality.
func Instrument(next http.Handler) http.Handler {
	return otelhttp.NewHandler(routeMetrics(next), "wealthdash-api")
}

func routeMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := statusOf(ww)

		span := trace.SpanFromContext(r.Context())
		span.SetName(r.Method + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		attrs := metric.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		routeDuration.Record(r.Context(), time.Since(start).Seconds(), attrs)
		routeRequests.Add(r.Context(), 1, attrs)
	})
}
