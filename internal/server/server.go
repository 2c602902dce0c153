package server

import (
	"log"
	"net/http"

	"github.com/tokradar/tokradar/pkg/feed"
	"github.com/tokradar/tokradar/pkg/storage"
)

type Server struct {
	DB       *storage.DB
	Feed     *feed.Client
	Username string
	Password string
}

func New(db *storage.DB, feedClient *feed.Client, user, pass string) *Server {
	return &Server{
		DB:       db,
		Feed:     feedClient,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	// API Group
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))
	mux.HandleFunc("GET /api/snapshots/latest", s.basicAuth(s.handleLatestSnapshot))
	mux.HandleFunc("GET /api/snapshots/{key}", s.basicAuth(s.handleSnapshot))
	mux.HandleFunc("GET /api/live", s.basicAuth(s.handleLive))

	log.Printf("Starting server on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
