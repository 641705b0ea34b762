package http

import (
	"net/http"

	"github.com/videoflix/videoflix/internal/adapter/http/middleware"
	"github.com/videoflix/videoflix/internal/service"
)

type Server struct {
	mux      *http.ServeMux
	handlers *Handlers
	sse      *SSEHandler
	verifier TokenVerifier
}

func NewServer(verifier TokenVerifier, catalog CatalogService, streams StreamService, eventBus *service.EventBus, maxSizeMB int) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		handlers: NewHandlers(catalog, streams, maxSizeMB),
		sse:      NewSSEHandler(eventBus, catalog),
		verifier: verifier,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.mux.HandleFunc("GET /video/{$}", s.auth(s.handlers.ListVideos()))
	s.mux.HandleFunc("POST /video/{$}", s.auth(s.handlers.Upload()))
	s.mux.HandleFunc("GET /video/{movie_id}/{$}", s.auth(s.handlers.VideoDetail()))
	s.mux.HandleFunc("DELETE /video/{movie_id}/{$}", s.auth(s.handlers.DeleteVideo()))

	s.mux.HandleFunc("GET /video/{movie_id}/events", s.auth(s.sse.Events()))
	s.mux.HandleFunc("GET /video/{movie_id}/thumbnail.jpg", s.auth(s.handlers.Thumbnail()))

	s.mux.HandleFunc("GET /video/{movie_id}/{resolution}/index.m3u8", s.auth(s.handlers.Manifest()))
	s.mux.HandleFunc("GET /video/{movie_id}/{resolution}/{segment}/{$}", s.auth(s.handlers.Segment()))
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return RequireAuth(s.verifier, next)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.mux).ServeHTTP(w, r)
}
