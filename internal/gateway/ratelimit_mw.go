package gateway

import (
	"net/http"
	"strconv"

	"github.com/rategate/rategate/internal/auth"
	"github.com/rategate/rategate/internal/routing"
	"github.com/rategate/rategate/ratelimit"
)

// Limiters holds the admission registries: a default policy plus optional
// per-route overrides keyed by route ID.
type Limiters struct {
	Default  *ratelimit.Registry
	PerRoute map[string]*ratelimit.Registry
}

func (ls *Limiters) forRoute(routeID string) *ratelimit.Registry {
	if reg, ok := ls.PerRoute[routeID]; ok {
		return reg
	}
	return ls.Default
}

// RateLimitHooks receive rate-limit events, typically to feed metrics.
// Nil hooks are skipped.
type RateLimitHooks struct {
	OnLimited  func(routeID string)
	OnRefunded func(routeID string)
}

// RateLimit admits or rejects each request against the registry for its
// route, keyed by the authenticated API key ("anon" when unauthenticated).
//
// With refundServerErrors set, a request whose handler answers 5xx gets
// its token back: upstream failures then don't burn the caller's budget.
func RateLimit(ls *Limiters, refundServerErrors bool, skipPaths map[string]struct{}, hooks RateLimitHooks) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// allow ops endpoints without limits
			if _, ok := skipPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			keyID, ok := auth.KeyIDFrom(r.Context())
			if !ok || keyID == "" {
				keyID = "anon"
			}

			routeID := "unknown"
			if rt, _ := routing.RouteFrom(r); rt != nil && rt.ID != "" {
				routeID = rt.ID
			}

			reg := ls.forRoute(routeID)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(reg.Rate(), 10))

			if reg.Limit(keyID) {
				if hooks.OnLimited != nil {
					hooks.OnLimited(routeID)
				}
				writeJSON(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
				return
			}

			if !refundServerErrors {
				next.ServeHTTP(w, r)
				return
			}

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			if sw.status >= http.StatusInternalServerError {
				reg.Undo(keyID)
				if hooks.OnRefunded != nil {
					hooks.OnRefunded(routeID)
				}
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// local tiny JSON helper to avoid coupling to auth package
func writeJSON(w http.ResponseWriter, code int, errCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":{"code":"` + errCode + `","message":"` + msg + `"}}`))
}
