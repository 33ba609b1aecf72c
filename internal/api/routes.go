package api

import (
	"net/http"
	"net/url"
	"time"

	"countdown.share/config"
	"countdown.share/internal/share"
	"countdown.share/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(sh share.Sharer, cfg *config.Config) *chi.Mux {
	return setupRouter(NewHandler(sh, cfg), cfg)
}

func setupRouter(h *Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)

	// CORS
	r.Use(CORS(CORSConfig{
		AllowedOrigins: []string{origin(cfg.Server.BaseURL)},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Health
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(RateLimit(cfg.RateLimit.RequestsPerMin, time.Minute))
		}

		// Long-lived; kept out of the request timeout.
		r.Get("/countdown/stream", h.StreamCountdown)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.With(JSONOnly).Post("/countdown", h.CreateCountdown)
			r.Get("/countdown", h.GetCountdown)
			r.Get("/shared/{shareId}", h.GetShared)

			if cfg.RateLimit.Enabled {
				r.With(RateLimit(cfg.RateLimit.SharePerMin, time.Minute)).Post("/share", h.ShareCountdown)
			} else {
				r.Post("/share", h.ShareCountdown)
			}
		})
	})

	// Frontend
	r.Get("/", h.Index)
	r.Get("/countdown", h.CountdownPage)
	r.Get("/shared/{shareId}", h.SharedPage)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(web.StaticFS())))
	r.NotFound(h.NotFound)

	return r
}

func origin(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return baseURL
	}
	return u.Scheme + "://" + u.Host
}
