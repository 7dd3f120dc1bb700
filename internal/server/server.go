// Package server exposes the extraction pipeline over HTTP: submit a
// document, poll its run, and fetch the run's manifest and consolidated
// output.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/guirra-byte/contracts-extractor/internal/async"
	"github.com/guirra-byte/contracts-extractor/internal/common"
	"github.com/guirra-byte/contracts-extractor/internal/repository"
	"github.com/guirra-byte/contracts-extractor/internal/store"
)

type Server struct {
	router    chi.Router
	queue     async.Queue
	runs      repository.RunRepository
	artifacts repository.ArtifactRepository
	store     store.Store
	log       *slog.Logger
	cfg       common.ServerConfig
}

func NewServer(queue async.Queue, runs repository.RunRepository, artifacts repository.ArtifactRepository, st store.Store, log *slog.Logger, cfg common.ServerConfig) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		queue:     queue,
		runs:      runs,
		artifacts: artifacts,
		store:     st,
		log:       log,
		cfg:       cfg,
	}
	if cfg.APIToken == "" {
		log.Warn("api token not configured; extraction endpoints are unauthenticated")
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/healthz", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		if s.cfg.APIToken != "" {
			r.Use(AuthMiddleware(s.cfg.APIToken, s.log))
		}

		r.Post("/v1/extractions", s.handleSubmit)
		r.Get("/v1/extractions", s.handleList)
		r.Get("/v1/extractions/{runID}", s.handleStatus)
		r.Get("/v1/extractions/{runID}/manifest", s.handleManifest)
		r.Get("/v1/extractions/{runID}/output", s.handleOutput)
		r.Get("/v1/extractions/{runID}/artifacts", s.handleArtifacts)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
