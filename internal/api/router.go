package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kdimtricp/anilights/internal/logging"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: app.corsOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/ping", PingHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", app.ListCategoriesHandler)

		r.Post("/sessions", app.CreateSessionHandler)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", app.GetSessionHandler)
			r.Delete("/", app.DeleteSessionHandler)
			r.Post("/picks", app.PickHandler)
			r.Post("/back", app.BackHandler)
			r.Post("/jump", app.JumpHandler)
			r.Post("/reset", app.ResetHandler)
			r.Post("/submit", app.SubmitHandler)
		})
	})

	return r
}
