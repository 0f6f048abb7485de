package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"storesync-api/internal/handler"
	"storesync-api/internal/middleware"
	"storesync-api/pkg/apierror"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler      *handler.Handler
	SyncHandler  *handler.SyncHandler
	AdminHandler *handler.AdminHandler
	Log          *logrus.Entry
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Sync-Run-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.Handler != nil {
		r.Get("/", cfg.Handler.Info)
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.SyncHandler != nil {
			r.Route("/sync/{store}/{kind}", func(r chi.Router) {
				r.Post("/", cfg.SyncHandler.Enqueue)
				r.Post("/run", cfg.SyncHandler.Run)
			})
		}

		if cfg.AdminHandler != nil {
			r.Get("/admin/stats", cfg.AdminHandler.GetStats)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write(apierror.NotFound("route not found").ToJSON())
	})

	return r
}
