package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"proprofile/internal/http/handlers"
	"proprofile/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	var origins []string
	secure := false
	if app.Config != nil {
		origins = app.Config.CORSAllowedOrigins
		secure = app.Config.AppEnv == "production"
	}

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(app.Logger),
		chimw.Recoverer,
		middleware.CORS(origins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/metrics", app.Metrics)
	r.Get("/v1/stats", app.StatsSummary)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(app.Store, secure))

		r.Get("/", app.Index)
		r.Route("/v1/session", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Post("/image", app.UploadImage)
			r.Put("/instruction", app.SetInstruction)
			r.Post("/generate", app.Generate)
			r.Post("/reset", app.Reset)
			r.Get("/download", app.Download)
			r.Get("/bundle", app.Bundle)
		})
	})

	return r
}
