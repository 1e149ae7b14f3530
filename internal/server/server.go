package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/substrate/internal/memory"
	"github.com/lazypower/substrate/internal/store"
)

// Server is the substrate HTTP API server. It owns one Memory instance
// and an optional checkpoint database.
type Server struct {
	mem     *memory.Memory
	db      *store.DB
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server. db may be nil, in which case the checkpoint
// endpoint reports failure and health omits the db fields.
func New(mem *memory.Memory, db *store.DB, version string) *Server {
	s := &Server{
		mem:     mem,
		db:      db,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/observe", s.handleObserve)
		r.Get("/query", s.handleQuery)
		r.Get("/stats", s.handleStats)
		r.Post("/checkpoint", s.handleCheckpoint)
		r.Post("/cycle", s.handleCycle)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
	}
	if s.db != nil {
		dbOK := s.db.Ping() == nil
		body["db"] = dbOK
		body["db_path"] = s.db.Path
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
