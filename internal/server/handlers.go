package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/guirra-byte/contracts-extractor/internal/async"
	"github.com/guirra-byte/contracts-extractor/internal/common"
	"github.com/guirra-byte/contracts-extractor/internal/provenance"
	"github.com/guirra-byte/contracts-extractor/internal/repository"
)

type submitRequest struct {
	SourcePath string `json:"source_path"`
}

// handleSubmit registers a run for a document already on shared storage
// and queues it. The run id comes back immediately; progress is polled.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	v := common.NewValidator()
	v.Field("source_path", req.SourcePath, common.Required, common.DocumentPath)
	if v.HasErrors() {
		jsonError(w, v.ErrorMessage(), http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(req.SourcePath); err != nil {
		if os.IsNotExist(err) {
			jsonError(w, "source file not found", http.StatusNotFound)
			return
		}
		jsonError(w, "source file unreadable: "+err.Error(), http.StatusInternalServerError)
		return
	}

	run := &repository.ExtractionRun{SourcePath: req.SourcePath}
	if err := s.runs.Create(r.Context(), run); err != nil {
		s.log.Error("create run failed", "source", req.SourcePath, "err", err)
		jsonError(w, "failed to register run", http.StatusInternalServerError)
		return
	}

	job := async.Job{
		RunID:       run.ID,
		SourcePath:  req.SourcePath,
		SubmittedAt: time.Now(),
		TraceID:     middleware.GetReqID(r.Context()),
	}
	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		if errors.Is(err, async.ErrQueueFull) || errors.Is(err, async.ErrQueueClosed) {
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":   run.ID.String(),
		"status":   run.Status,
		"poll_url": "/v1/extractions/" + run.ID.String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		jsonError(w, err.Error(), common.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, runJSON(run))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := s.runs.ListRecent(r.Context(), limit)
	if err != nil {
		jsonError(w, err.Error(), common.HTTPStatus(err))
		return
	}
	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		out = append(out, runJSON(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"extractions": out})
}

// handleManifest streams the run's cutout manifest. A finished run with no
// manifest in the store answers 404; that absence is the documented signal
// that no cutouts were produced for the keys a consumer expected.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	s.streamRunFile(w, r, provenance.ManifestName, "manifest not available")
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	s.streamRunFile(w, r, "consolidated.json", "output not available")
}

func (s *Server) streamRunFile(w http.ResponseWriter, r *http.Request, name, missingMsg string) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	if _, err := s.runs.Get(r.Context(), id); err != nil {
		jsonError(w, err.Error(), common.HTTPStatus(err))
		return
	}

	rc, err := s.store.Open(id.String() + "/" + name)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			jsonError(w, missingMsg, http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("streaming run file failed", "run_id", id, "name", name, "err", err)
	}
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	if _, err := s.runs.Get(r.Context(), id); err != nil {
		jsonError(w, err.Error(), common.HTTPStatus(err))
		return
	}

	arts, err := s.artifacts.ListByRun(r.Context(), id)
	if err != nil {
		jsonError(w, err.Error(), common.HTTPStatus(err))
		return
	}
	out := make([]map[string]any, 0, len(arts))
	for _, a := range arts {
		out = append(out, map[string]any{
			"manifest_key": a.ManifestKey,
			"name":         a.Name,
			"uri":          a.URI,
			"chunk_id":     a.ChunkID,
			"page":         a.Page,
			"seq":          a.Seq,
			"region":       a.Region,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": out})
}

func (s *Server) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		jsonError(w, "invalid run id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func runJSON(run *repository.ExtractionRun) map[string]any {
	m := map[string]any{
		"run_id":           run.ID.String(),
		"source_path":      run.SourcePath,
		"status":           run.Status,
		"identifier_field": run.IdentifierField,
		"unit_count":       run.UnitCount,
		"artifact_count":   run.ArtifactCount,
		"failure_count":    run.FailureCount,
		"output_uri":       run.OutputURI,
		"manifest_uri":     run.ManifestURI,
		"started_at":       run.StartedAt.Format(time.RFC3339),
	}
	if run.ErrorMessage != "" {
		m["error"] = run.ErrorMessage
	}
	if run.FinishedAt != nil {
		m["finished_at"] = run.FinishedAt.Format(time.RFC3339)
	}
	return m
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
