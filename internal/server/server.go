// Package server exposes the read-only query surface over HTTP. Every
// endpoint is a projection of the catalog store; there are no mutation
// endpoints, so the API can sit in front of a live pipeline without
// coordination.
package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/powderline/quiver/internal/reconcile"
	"github.com/powderline/quiver/internal/store"
	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
	"github.com/powderline/quiver/pkg/logging"
)

// Server serves the query API.
type Server struct {
	store  store.Store
	engine *reconcile.Engine
}

// New creates a server over a store and reconciliation engine.
func New(st store.Store, engine *reconcile.Engine) *Server {
	return &Server{store: st, engine: engine}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/latest", s.handleLatestRun)
		r.Get("/runs/{id}", s.handleRun)
		r.Get("/runs/{id}/boards", s.handleRunBoards)
		r.Get("/boards", s.handleBoards)
		r.Get("/boards/{key}/sources", s.handleBoardSources)
	})

	return r
}

// BoardListings is one board with its listings from a single run.
type BoardListings struct {
	Board    *catalog.Board     `json:"board"`
	Listings []*catalog.Listing `json:"listings"`
}

// BoardSources is one board's per-field provenance.
type BoardSources struct {
	Board  *catalog.Board              `json:"board"`
	Fields []reconcile.FieldProvenance `json:"fields"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.Runs(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*catalog.Run{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestRun(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, r, errors.NewValidationError("id", chi.URLParam(r, "id"), "run id must be numeric"))
		return
	}
	run, err := s.store.Run(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// handleRunBoards joins one run's listings with their boards.
func (s *Server) handleRunBoards(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, r, errors.NewValidationError("id", chi.URLParam(r, "id"), "run id must be numeric"))
		return
	}
	if _, err := s.store.Run(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	listings, err := s.store.ListingsForRun(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	byBoard := make(map[catalog.BoardKey]*BoardListings)
	var out []*BoardListings
	for _, listing := range listings {
		entry, ok := byBoard[listing.BoardKey]
		if !ok {
			board, err := s.store.Board(r.Context(), listing.BoardKey)
			if err != nil {
				respondError(w, r, err)
				return
			}
			entry = &BoardListings{Board: board}
			byBoard[listing.BoardKey] = entry
			out = append(out, entry)
		}
		entry.Listings = append(entry.Listings, listing)
	}
	if out == nil {
		out = []*BoardListings{}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.store.Boards(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if boards == nil {
		boards = []*catalog.Board{}
	}
	respondJSON(w, http.StatusOK, boards)
}

func (s *Server) handleBoardSources(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, r, errors.NewValidationError("key", chi.URLParam(r, "key"), "malformed board key"))
		return
	}
	key := catalog.BoardKey(raw)
	if !key.IsValid() {
		respondError(w, r, errors.NewValidationError("key", raw, "invalid board key"))
		return
	}

	board, err := s.store.Board(r.Context(), key)
	if err != nil {
		respondError(w, r, err)
		return
	}
	fields, err := s.engine.Audit(r.Context(), key)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, BoardSources{Board: board, Fields: fields})
}

// requestLogger logs each request at debug level with method, path and
// duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.FromContext(r.Context()).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsValidationError(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}
