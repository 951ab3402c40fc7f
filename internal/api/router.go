package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(ZapLogger(apiHandler.logger.Named("http")))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// Preference form
	r.Get("/", apiHandler.FormHandler)
	r.Get("/client", apiHandler.FormHandler)
	r.Post("/preferences", apiHandler.SubmitPreferenceHandler)

	// Group browser and generation
	r.Route("/admin", func(r chi.Router) {
		r.Get("/", apiHandler.StudioHandler)
		r.Post("/groups", apiHandler.FetchGroupsHandler)
		r.Post("/groups/{groupID}/generate", apiHandler.GenerateHandler)
		r.Post("/regenerate", apiHandler.RegenerateHandler)
		r.Get("/results", apiHandler.ResultsHandler)
		r.Get("/images/{n}/download", apiHandler.DownloadImageHandler)
		r.Post("/back", apiHandler.BackHandler)
		r.Post("/reset", apiHandler.ResetHandler)
		r.Post("/dismiss", apiHandler.DismissHandler)
	})

	r.Get("/history", apiHandler.HistoryHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)
		r.Get("/state", apiHandler.StateHandler)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})

	return r
}
