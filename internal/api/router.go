package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flightassist/skyguard/internal/agent"
	"github.com/flightassist/skyguard/internal/config"
	"github.com/flightassist/skyguard/internal/weather"
	"github.com/flightassist/skyguard/pkg/logger"
)

// Router wires the HTTP surface: the query endpoints, their streaming
// variant, health, and (when configured) a static file mount.
type Router struct {
	handler *Handler
	static  *StaticFileHandler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter builds a Router around the agent loop and the weather
// subsystem whose health HandleHealth reports.
func NewRouter(agentSvc *agent.Agent, weatherSvc *weather.Service, cfg *config.Config, log *logger.Logger) *Router {
	var static *StaticFileHandler
	if cfg.Server.StaticFilesDir != "" {
		static = NewStaticFileHandler(cfg.Server.StaticFilesDir, log)
	}
	return &Router{
		handler: NewHandler(agentSvc, weatherSvc, cfg, log),
		static:  static,
		config:  cfg,
		logger:  log.Named("router"),
	}
}

// Routes builds the chi mux. Every configured port shares this one mux.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", rt.handler.HandleHealth)
		r.Post("/query", rt.handler.HandleQuery)
		r.Post("/query/stream", rt.handler.HandleQueryStream)
	})

	if rt.static != nil {
		r.NotFound(rt.static.ServeHTTP)
	}

	return r
}

// corsMiddleware sets Access-Control-* headers for origins on the
// configured allow-list and short-circuits OPTIONS preflight requests.
func (rt *Router) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && rt.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rt *Router) originAllowed(origin string) bool {
	for _, allowed := range rt.config.Server.CORSAllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
