package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/vozurbana/voz-urbana-api/internal/api/auth"
	"github.com/vozurbana/voz-urbana-api/internal/api/upload"
)

// Config carries the handlers and middleware the route tree is built from.
type Config struct {
	AuthHandler   *auth.Handler
	UploadHandler *upload.Handler

	// Authenticate is the admission gate; it sees every request under the
	// API tree and lets its own allow-list through unauthenticated.
	Authenticate func(http.Handler) http.Handler
	RequireAdmin func(http.Handler) http.Handler
}

// SetupRouter builds the application route tree. Server-wide middleware
// (request id, logger, recoverer) is applied by main before mounting this.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(cfg.Authenticate)

		r.Route("/v1/auth", func(r chi.Router) {
			// Public per the gate's allow-list.
			r.Post("/login", cfg.AuthHandler.Login)
			r.Post("/register", cfg.AuthHandler.Register)
			r.Post("/refresh", cfg.AuthHandler.Refresh)
			r.Post("/oauth/google", cfg.AuthHandler.GoogleLogin)

			// Protected.
			r.Put("/password", cfg.AuthHandler.ChangePassword)
			r.Patch("/status", cfg.AuthHandler.CompleteAuthentication)

			r.Group(func(r chi.Router) {
				r.Use(cfg.RequireAdmin)
				r.Post("/register/admin", cfg.AuthHandler.RegisterAdmin)
			})
		})

		r.Route("/upload", func(r chi.Router) {
			r.Post("/file", cfg.UploadHandler.SaveImage)
			r.Get("/{filename}", cfg.UploadHandler.GetImage)
		})
	})

	return r
}
