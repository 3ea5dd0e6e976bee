package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/updrift/engine/internal/api/handlers"
	mw "github.com/updrift/engine/internal/api/middleware"
)

type Dependencies struct {
	HMACSecret      []byte
	HealthHandler   *handlers.HealthHandler
	BundlesHandler  *handlers.BundlesHandler
	ProjectsHandler *handlers.ProjectsHandler
	ChannelsHandler *handlers.ChannelsHandler
	ReleasesHandler *handlers.ReleasesHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(50, 100))
	r.Use(chimid.Compress(5))

	r.Get("/healthz", dep.HealthHandler.Liveness)
	r.Get("/readyz", dep.HealthHandler.Readiness)

	r.Route("/api/v1", func(api chi.Router) {
		// Client protocol (public): update check and bundle download.
		api.Route("/bundles", func(br chi.Router) {
			br.Get("/{project}", dep.BundlesHandler.Resolve)
			br.Get("/{project}/{release}", dep.BundlesHandler.Download)
		})

		// Admin API.
		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.HMACSecret))

			protected.Route("/projects", func(pr chi.Router) {
				pr.Get("/", dep.ProjectsHandler.List)
				pr.Post("/", dep.ProjectsHandler.Create)
				pr.Get("/{project}", dep.ProjectsHandler.Get)
				pr.Put("/{project}", dep.ProjectsHandler.Update)
				pr.Delete("/{project}", dep.ProjectsHandler.Delete)

				pr.Route("/{project}/channels", func(cr chi.Router) {
					cr.Get("/", dep.ChannelsHandler.List)
					cr.Post("/", dep.ChannelsHandler.Create)
					cr.Put("/{channel}", dep.ChannelsHandler.Rename)
					cr.Delete("/{channel}", dep.ChannelsHandler.Delete)
				})

				pr.Route("/{project}/releases", func(rr chi.Router) {
					rr.Get("/", dep.ReleasesHandler.List)
					rr.Post("/", dep.ReleasesHandler.Create)
					rr.Get("/{release}", dep.ReleasesHandler.Get)
					rr.Put("/{release}", dep.ReleasesHandler.Update)
					rr.Delete("/{release}", dep.ReleasesHandler.Delete)
				})
			})
		})
	})

	return r
}
