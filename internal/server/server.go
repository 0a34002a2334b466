package server

import (
	"log/slog"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polkassembly/governance/internal/auth"
	"github.com/polkassembly/governance/internal/config"
)

type Server struct {
	Auth           *auth.Service
	Config         config.Config
	Logger         *slog.Logger
	schema         *graphql.Schema
	trustedProxies proxySet
}

func NewServer(cfg config.Config, svc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Auth:           svc,
		Config:         cfg,
		Logger:         logger,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}
	s.schema = graphql.MustParseSchema(schema, &resolver{srv: s},
		graphql.UseFieldResolvers(),
		graphql.MaxDepth(8),
		graphql.Logger(panicLogger{logger: logger}),
	)
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&requestLogFormatter{logger: s.Logger}))
	r.Use(middleware.Recoverer)
	if s.Config.SentryDSN != "" {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true, Timeout: 2 * time.Second}).Handle)
	}
	r.Use(s.secureHeaders)
	r.Use(instrument)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(gr chi.Router) {
		gr.Use(middleware.AllowContentType("application/json"))
		gr.Use(s.requestContext)
		gr.Method(http.MethodPost, "/auth/graphql", &relay.Handler{Schema: s.schema})
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// secure reports whether cookies should carry the Secure flag.
func (s *Server) secure() bool {
	return s.Config.AppEnv != "development" && s.Config.AppEnv != "test"
}
