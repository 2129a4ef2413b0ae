package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"murmur/internal/artifacts"
	"murmur/internal/config"
	"murmur/internal/rewrite"
	"murmur/internal/storage/sqlite"
	"murmur/internal/transcription"
	"murmur/internal/websocket"
	"murmur/pkg/logger"
)

// Router builds the HTTP surface of the service.
type Router struct {
	handler  *Handler
	wsServer *websocket.Server
	logger   *logger.Logger
}

// NewRouter creates the API router.
func NewRouter(
	orchestrator *transcription.Orchestrator,
	rewriter *rewrite.Rewriter,
	historyStore *sqlite.HistoryStore,
	artifactStore *artifacts.Store,
	cfg *config.Config,
	log *logger.Logger,
	wsServer *websocket.Server,
) *Router {
	return &Router{
		handler:  NewHandler(orchestrator, rewriter, historyStore, artifactStore, cfg, log, wsServer),
		wsServer: wsServer,
		logger:   log.Named("api-router"),
	}
}

// Routes returns the configured HTTP handler.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", rt.handler.Health)
		r.Get("/credentials/validate", rt.handler.ValidateCredential)

		r.Post("/dictations", rt.handler.CreateDictation)

		r.Get("/history", rt.handler.GetHistory)
		r.Delete("/history/{id}", rt.handler.DeleteHistoryItem)
		r.Delete("/history", rt.handler.ClearHistory)
		r.Post("/history/trim", rt.handler.TrimHistory)
	})

	r.Get("/ws", rt.wsServer.HandleConnection)

	return r
}
