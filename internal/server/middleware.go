package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/polkassembly/governance/internal/auth"
	"github.com/polkassembly/governance/internal/i18n"
)

type ctxKey string

const requestInfoKey ctxKey = "request"

// requestInfo carries what resolvers need from the HTTP layer.
type requestInfo struct {
	w        http.ResponseWriter
	r        *http.Request
	ip       string
	claims   *auth.Claims
	tokenErr error
}

// requestContext parses the bearer token, if any, and exposes the
// response writer so resolvers can set cookies.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &requestInfo{w: w, r: r, ip: clientIP(r, s.trustedProxies)}
		if raw := bearerToken(r); raw != "" {
			info.claims, info.tokenErr = s.Auth.Issuer.Parse(raw)
		}

		ctx := context.WithValue(r.Context(), requestInfoKey, info)
		ctx = i18n.WithLocale(ctx, i18n.LocaleFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestFromContext(ctx context.Context) *requestInfo {
	if val, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		return val
	}
	return &requestInfo{}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "status"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// requestLogFormatter plugs slog into chi's RequestLogger.
type requestLogFormatter struct {
	logger *slog.Logger
}

func (f *requestLogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestLogEntry{
		logger: f.logger.With(
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		),
	}
}

type requestLogEntry struct {
	logger *slog.Logger
}

func (e *requestLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	e.logger.Log(context.Background(), level, "request",
		"status", status,
		"bytes", bytes,
		"elapsed", elapsed,
	)
}

func (e *requestLogEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("panic", "value", v, "stack", string(stack))
}

// panicLogger receives panics recovered inside resolvers.
type panicLogger struct {
	logger *slog.Logger
}

func (p panicLogger) LogPanic(ctx context.Context, value interface{}) {
	p.logger.ErrorContext(ctx, "graphql resolver panic", "value", value)
}
