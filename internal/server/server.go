package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"furnicolor/internal/auth"
	"furnicolor/internal/catalog"
	"furnicolor/internal/config"
	"furnicolor/internal/events"
	"furnicolor/internal/middleware"
	"furnicolor/internal/proxy"
	"furnicolor/internal/studio"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth    auth.Handler
	Session auth.Middleware
	Catalog catalog.Handler
	Studio  studio.Handler
	Proxy   proxy.Handler
	Events  *events.Broker
	// Media serves locally stored uploads under /media/ when set.
	Media http.Handler
	// ProxyToken lets other deployments call the job proxies without a session.
	ProxyToken string
}

// New constructs the HTTP server with routes and middleware.
func New(port string, httpCfg config.HTTPConfig, logger zerolog.Logger, h Handlers) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           Router(httpCfg, logger, h),
		ReadTimeout:       orDefault(httpCfg.ReadTimeout, 15*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      orDefault(httpCfg.WriteTimeout, 120*time.Second),
		IdleTimeout:       orDefault(httpCfg.IdleTimeout, 60*time.Second),
	}

	logger.Info().Str("addr", srv.Addr).Msg("server ready")
	return srv
}

// Router builds the chi router.
func Router(httpCfg config.HTTPConfig, logger zerolog.Logger, h Handlers) http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.Logger(logger))
	router.Use(chimw.Recoverer)
	router.Use(middleware.Locale)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if h.Media != nil {
		router.Handle("/media/*", http.StripPrefix("/media/", h.Media))
	}

	router.Route("/api", func(r chi.Router) {
		if httpCfg.RateLimitEvery > 0 && httpCfg.RateLimitBurst > 0 {
			r.Use(middleware.RateLimit(httpCfg.RateLimitEvery, httpCfg.RateLimitBurst))
		}
		r.Use(h.Session.Restore)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Auth.Login)
			r.Post("/logout", h.Auth.Logout)
			r.Get("/me", h.Auth.Me)
			r.With(auth.RequireAuth).Post("/password", h.Auth.ChangePassword)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", h.Catalog.List)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Post("/swatches", h.Catalog.CreateSwatch)
				r.Patch("/swatches/{id}", h.Catalog.UpdateSwatch)
				r.Delete("/swatches/{id}", h.Catalog.DeleteSwatch)
				r.Post("/categories", h.Catalog.CreateCategory)
				r.Delete("/categories/{id}", h.Catalog.DeleteCategory)
			})
		})

		r.Route("/studio", func(r chi.Router) {
			r.Post("/analyze", h.Studio.Analyze)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Post("/recolor", h.Studio.Recolor)
				r.Get("/tasks/{id}", h.Studio.Task)
				r.Delete("/tasks/{id}", h.Studio.CancelTask)
				r.Get("/history", h.Studio.History)
				r.Delete("/history/{id}", h.Studio.DeleteProject)
			})
		})

		if h.Events != nil {
			r.With(auth.RequireAuth).Get("/events", h.Events.Stream(sessionOf, 0))
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuthOrToken(h.ProxyToken))
			r.Post("/jobs", h.Proxy.Job)
			r.Post("/style-transfer", h.Proxy.StyleTransfer)
		})

		r.With(auth.RequireAdmin).Get("/admin/models", h.Studio.ListModels)
	})

	return router
}

func sessionOf(r *http.Request) (string, bool) {
	acc, ok := auth.AccountFromContext(r.Context())
	if !ok {
		return "", false
	}
	return acc.ID, true
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
