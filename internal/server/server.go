package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-semantic-release/source-resolver/internal/config"
	"github.com/go-semantic-release/source-resolver/internal/resolver"
	"github.com/go-semantic-release/source-resolver/internal/state"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router   chi.Router
	log      *logrus.Logger
	resolver *resolver.Resolver
	store    state.Store
	config   *config.ResolverConfig
	cache    *cache.Cache
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONError(w, r, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
}

func (s *Server) indexHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{
		"service": "3pp source resolver",
		"stage":   s.config.Stage,
		"version": s.config.Version,
	})
}

func New(log *logrus.Logger, res *resolver.Resolver, store state.Store, cfg *config.ResolverConfig) *Server {
	router := chi.NewRouter()
	server := &Server{
		router:   router,
		log:      log,
		resolver: res,
		store:    store,
		config:   cfg,
		cache:    cache.New(5*time.Minute, 10*time.Minute),
	}
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(server.logMiddleware)
	router.Use(server.recoverMiddleware)

	router.Use(middleware.Timeout(5 * time.Minute))

	router.NotFound(server.notFoundHandler)
	router.MethodNotAllowed(server.methodNotAllowedHandler)

	router.Get("/", server.indexHandler)

	router.Route("/api/v1/sources", func(r chi.Router) {
		r.With(server.cacheMiddleware).Group(func(r chi.Router) {
			r.Get("/", server.listSources)
			r.Get("/{source}/latest", server.getLatest)
			r.Get("/{source}/versions/{version}/platforms/{platform}", server.getManifest)
		})
		r.Get("/{source}/versions/{version}/platforms/{platform}/download", server.downloadArtifact)
		r.Post("/_latest", server.batchLatest)

		r.Get("/{source}/installed/{platform}", server.getInstalled)
		r.With(server.authMiddleware).Put("/{source}/installed/{platform}", server.recordInstalled)
	})

	return server
}
