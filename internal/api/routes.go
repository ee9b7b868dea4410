package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/brightsend/mailform/internal/auth"
	"github.com/brightsend/mailform/internal/ratelimit"
)

// SetupRoutes builds the router. The form submission endpoint and asset
// serving stay public; everything else under /v1 requires a bearer
// token. assetPrefix is the public mount point for stored files,
// normally "/asset".
func SetupRoutes(h *Handlers, authSvc *auth.Service, limiter ratelimit.Limiter, assetPrefix string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// Forms are posted from arbitrary third-party sites, so the public
	// surface is CORS-open. The token-auth API carries no cookies, which
	// keeps the wildcard safe.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	if assetPrefix == "" {
		assetPrefix = "/asset"
	}
	r.Get(assetPrefix+"/{domain}/*", h.ServeAsset)

	r.Route("/v1", func(r chi.Router) {
		r.With(ratelimit.Middleware(limiter)).Post("/form/message", h.FormMessage)

		r.Group(func(r chi.Router) {
			r.Use(authSvc.Middleware)

			r.Post("/tx/template", h.UpsertTemplate)
			r.Post("/tx/message", h.SendMessage)
			r.Post("/form", h.UpsertForm)
			r.Post("/form/recipient", h.UpsertRecipients)
			r.Post("/asset/{domain}", h.UploadAssets)
		})
	})

	return r
}
