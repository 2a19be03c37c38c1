// Package server assembles the HTTP router of the link service.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/tinylink/internal/app/handler"
	"github.com/atinyakov/tinylink/internal/app/service"
	"github.com/atinyakov/tinylink/internal/metrics"
	"github.com/atinyakov/tinylink/internal/middleware"
)

// Init builds the router. trustedSubnet guards /metrics; empty leaves it open.
func Init(links service.LinkServiceIface, auth service.AuthIface, logger *zap.Logger, m *metrics.Metrics, trustedSubnet string) *chi.Mux {
	getHandler := handler.NewGet(links, logger, m)
	postHandler := handler.NewPost(links, logger, m)
	deleteHandler := handler.NewDelete(links, logger)
	authHandler := handler.NewAuth(auth, logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.WithMetrics(m))
	r.Use(middleware.WithRequestLogging(logger))

	r.Get("/healthz", getHandler.Healthz)
	r.Get("/ping", getHandler.PingDB)
	r.With(middleware.WithSubnet(trustedSubnet)).Handle("/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.WithGzipRequest)
		r.Use(middleware.WithGzipResponse)

		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.WithJWT(auth))

			r.Get("/auth/me", authHandler.Me)

			r.Post("/links", postHandler.CreateLink)
			r.Get("/links", getHandler.ListLinks)
			r.Delete("/links", deleteHandler.DeleteBatch)
			r.Get("/links/{code}", getHandler.LinkStats)
			r.Delete("/links/{code}", deleteHandler.DeleteLink)
		})
	})

	r.Get("/{code}", getHandler.Redirect)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}
