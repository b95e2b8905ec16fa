package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digitalemployee/orchestrator/internal/telemetry"
)

// responseWriter wraps http.ResponseWriter to capture the status code and
// body size for logging/metrics, grounded on the pack's
// kadirpekel-hector/pkg/transport/http_metrics_middleware.go.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// loggingMiddleware logs one line per request with the chi route pattern
// (not the raw path, which would blow up log cardinality with path
// parameters), method, status and duration.
func loggingMiddleware(logger telemetry.Logger, metrics telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			pattern := routePattern(r)
			logger.Info(r.Context(), "http request",
				"method", r.Method, "route", pattern, "status", wrapped.statusCode,
				"bytes", wrapped.size, "duration_ms", duration.Milliseconds())
			metrics.RecordTimer("api.request.duration", duration, "route", pattern, "method", r.Method)
			metrics.IncCounter("api.request.count", 1, "route", pattern, "status", http.StatusText(wrapped.statusCode))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// pathTenantKey carries the tenant id resolved for this request (from
// X-Tenant-ID or a /tenants/{tenant_id}/... path segment, spec.md §6).
type pathTenantKey struct{}

// tenantScopeMiddleware resolves the request's tenant id and, when the route
// also carries an authenticated tenant (every route but health/token
// issuance), rejects a mismatch as TenantMismatch rather than silently
// trusting whichever one a caller chooses to spoof.
func tenantScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenant_id")
		if tenantID == "" {
			tenantID = r.Header.Get("X-Tenant-ID")
		}
		if tenantID == "" {
			badRequest(w, "missing tenant id (X-Tenant-ID header or /tenants/{tenant_id}/... path)")
			return
		}
		if authTenant, ok := authenticatedTenant(r.Context()); ok && authTenant != tenantID {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "token tenant does not match request tenant", Kind: "tenant_mismatch"})
			return
		}
		ctx := context.WithValue(r.Context(), pathTenantKey{}, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tenantFromContext(ctx context.Context) string {
	v, _ := ctx.Value(pathTenantKey{}).(string)
	return v
}
