package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facecluster/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	identitiesHandler := handlers.NewIdentitiesHandler(s.store, s.encoder)
	facesHandler := handlers.NewFacesHandler(s.store, s.matcher, s.encoder)
	clusterHandler := handlers.NewClusterHandler(s.config.Cluster)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Config
		r.Get("/config", configHandler.Get)

		// Identity store
		r.Get("/identities", identitiesHandler.List)
		r.Delete("/identities", identitiesHandler.Reset)
		r.Post("/identities/{id}/embeddings", identitiesHandler.AddEmbedding)

		// Recognition and search
		r.Post("/recognize", facesHandler.Recognize)
		r.Post("/search", facesHandler.Search)

		// Clustering
		r.Post("/cluster", clusterHandler.Cluster)
	})
}
