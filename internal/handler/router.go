package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"confidee-relayer/internal/util"
)

// RouterConfig carries the transport settings the router needs.
type RouterConfig struct {
	RequireHTTPS   bool
	AllowedOrigins []string
	IPLimiter      *IPRateLimiter // nil disables per-IP limiting
	RequestTimeout time.Duration
	// Health reports failing components; nil reports healthy unconditionally.
	Health         HealthFunc
}

// HealthFunc returns false when a required component is down. failures may
// also list optional components that do not affect healthy.
type HealthFunc func(ctx context.Context) (healthy bool, failures map[string]error)

const healthCheckTimeout = 3 * time.Second

type healthResponse struct {
	Status     string            `json:"status"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components,omitempty"`
}

// NewRouter creates the chi router with middleware and routes.
func NewRouter(cfg RouterConfig, sessionHandler *SessionHandler, relayHandler *RelayHandler, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if cfg.RequireHTTPS {
		router.Use(requireHTTPS)
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", healthHandler(cfg.Health, logger))

	router.Group(func(r chi.Router) {
		if cfg.IPLimiter != nil {
			r.Use(cfg.IPLimiter.Middleware)
		}

		// Relays wait on chain confirmation with their own receipt
		// timeout, so only the short endpoints get the request timeout.
		r.Group(func(r chi.Router) {
			timeout := cfg.RequestTimeout
			if timeout <= 0 {
				timeout = 60 * time.Second
			}
			r.Use(middleware.Timeout(timeout))
			sessionHandler.RegisterRoutes(r)
		})

		relayHandler.RegisterRoutes(r)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error":"method not allowed"}`))
	})

	return router
}

func healthHandler(check HealthFunc, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "healthy", Service: util.ServiceName}
		if check == nil {
			respondWithJSON(w, logger, http.StatusOK, resp)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		healthy, failures := check(ctx)
		if len(failures) > 0 {
			resp.Components = make(map[string]string, len(failures))
			for name, err := range failures {
				resp.Components[name] = err.Error()
			}
		}

		status := http.StatusOK
		switch {
		case !healthy:
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			logger.Warn("Health check failed", zap.Any("components", resp.Components))
		case len(failures) > 0:
			resp.Status = "degraded"
		}
		respondWithJSON(w, logger, status, resp)
	}
}
