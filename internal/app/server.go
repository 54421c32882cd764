package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/paperdex/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/paperdex/internal/api/middlewares"
	"github.com/markdave123-py/paperdex/internal/config"
	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/core/ingestion_engine"
	"github.com/markdave123-py/paperdex/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, ing ingestion_engine.Ingestor, meta core.MetadataProvider, library *services.LibraryService, retrieval *services.RetrievalService) *Server {
	return &Server{httpServer: &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: NewRouter(cfg.JWTSecret, ing, meta, library, retrieval),
	}}
}

// NewRouter builds the chi router. An empty jwtSecret leaves /api open.
func NewRouter(jwtSecret string, ing ingestion_engine.Ingestor, meta core.MetadataProvider, library *services.LibraryService, retrieval *services.RetrievalService) http.Handler {
	papers := handlers.NewPapersHandler(ing, meta, library, services.NewSessions())
	chat := handlers.NewChatHandler(retrieval)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		if jwtSecret != "" {
			api.Use(appMiddleware.JWTMiddleware(jwtSecret))
		}
		api.Post("/papers/ingest", papers.Ingest)
		api.Get("/papers/search", papers.Search)
		api.Post("/papers/ingest-selection", papers.IngestSelection)
		api.Get("/library", papers.Library)
		api.Delete("/papers/{id}", papers.Delete)
		api.Get("/stats", papers.Stats)
		api.Post("/chat/query", chat.Query)
	})

	return r
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
