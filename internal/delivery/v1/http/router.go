package http

import (
	"net/http"

	_ "github.com/DRSN-tech/taste-backend/docs" // регистрация swagger-спецификации
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(handler *TasteHandler) {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.Recoverer)
	r.router.Use(Metrics)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.router.Handle("/metrics", promhttp.Handler())
	r.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerUserRoutes(v1, handler)
		registerEmbeddingRoutes(v1, handler)
	})
}

func registerUserRoutes(router chi.Router, h *TasteHandler) {
	router.Route("/users/{id}", func(ur chi.Router) {
		ur.Get("/compatibility/{otherID}", h.getCompatibility)
		ur.Get("/recommendations", h.getRecommendations)
		ur.Get("/similar", h.getSimilarUsers)
		ur.Post("/embedding", h.aggregateEmbedding)
	})
}

func registerEmbeddingRoutes(router chi.Router, h *TasteHandler) {
	router.Route("/embeddings", func(er chi.Router) {
		er.Post("/refresh", h.refreshEmbeddings)
	})
}
