package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/common"
)

const runTable = "extraction_runs"

var runColumns = []string{
	"id", "source_path", "content_hash", "identifier_field", "status",
	"unit_count", "artifact_count", "failure_count",
	"output_uri", "manifest_uri", "error_message",
	"started_at", "finished_at", "created_at",
}

// ExtractionRun is one contract document processed end to end.
type ExtractionRun struct {
	ID              uuid.UUID
	SourcePath      string
	ContentHash     string
	IdentifierField string
	Status          constants.RunStatus
	UnitCount       int
	ArtifactCount   int
	FailureCount    int
	OutputURI       string
	ManifestURI     string
	ErrorMessage    string
	StartedAt       time.Time
	FinishedAt      *time.Time
	CreatedAt       time.Time
}

// FinishResult carries the counters and URIs of a completed run.
type FinishResult struct {
	UnitCount     int
	ArtifactCount int
	FailureCount  int
	OutputURI     string
	ManifestURI   string
}

type RunRepository interface {
	Create(ctx context.Context, run *ExtractionRun) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.RunStatus) error
	FinishSuccess(ctx context.Context, id uuid.UUID, res FinishResult) error
	FinishFailure(ctx context.Context, id uuid.UUID, message string) error
	Get(ctx context.Context, id uuid.UUID) (*ExtractionRun, error)
	ListRecent(ctx context.Context, limit int) ([]*ExtractionRun, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log}
}

func (r *runRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Driver.Dialect())
}

func (r *runRepo) Create(ctx context.Context, run *ExtractionRun) error {
	now := time.Now().UTC()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = constants.RunStatusQueued
	}
	if run.IdentifierField == "" {
		run.IdentifierField = "unitCode"
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	run.CreatedAt = now

	query, args := r.builder().
		Insert(runTable).
		Columns(runColumns...).
		Values(run.ID.String(), run.SourcePath, run.ContentHash, run.IdentifierField, string(run.Status),
			run.UnitCount, run.ArtifactCount, run.FailureCount,
			run.OutputURI, run.ManifestURI, run.ErrorMessage,
			run.StartedAt, nil, run.CreatedAt).
		Query()
	if _, err := r.db.Driver.DB().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("extraction_run create failed", "run_id", run.ID, "err", err)
		return common.WrapError(err, "create extraction run")
	}
	r.log.Info("extraction_run created", "run_id", run.ID, "source", run.SourcePath)
	return nil
}

func (r *runRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.RunStatus) error {
	query, args := r.builder().
		Update(runTable).
		Set("status", string(status)).
		Where(entsql.EQ("id", id.String())).
		Query()
	if _, err := r.db.Driver.DB().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("extraction_run status update failed", "run_id", id, "status", status, "err", err)
		return common.WrapError(err, "update run status")
	}
	r.log.Info("extraction_run status", "run_id", id, "status", status)
	return nil
}

func (r *runRepo) FinishSuccess(ctx context.Context, id uuid.UUID, res FinishResult) error {
	query, args := r.builder().
		Update(runTable).
		Set("status", string(constants.RunStatusDone)).
		Set("unit_count", res.UnitCount).
		Set("artifact_count", res.ArtifactCount).
		Set("failure_count", res.FailureCount).
		Set("output_uri", res.OutputURI).
		Set("manifest_uri", res.ManifestURI).
		Set("finished_at", time.Now().UTC()).
		Where(entsql.EQ("id", id.String())).
		Query()
	if _, err := r.db.Driver.DB().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("extraction_run finish(DONE) failed", "run_id", id, "err", err)
		return common.WrapError(err, "finish extraction run")
	}
	r.log.Info("extraction_run finished (DONE)",
		"run_id", id, "units", res.UnitCount, "artifacts", res.ArtifactCount, "failures", res.FailureCount)
	return nil
}

func (r *runRepo) FinishFailure(ctx context.Context, id uuid.UUID, message string) error {
	query, args := r.builder().
		Update(runTable).
		Set("status", string(constants.RunStatusFailed)).
		Set("error_message", message).
		Set("finished_at", time.Now().UTC()).
		Where(entsql.EQ("id", id.String())).
		Query()
	if _, err := r.db.Driver.DB().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("extraction_run finish(FAILED) failed", "run_id", id, "err", err)
		return common.WrapError(err, "fail extraction run")
	}
	r.log.Warn("extraction_run finished (FAILED)", "run_id", id, "error", message)
	return nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*ExtractionRun, error) {
	query, args := r.builder().
		Select(runColumns...).
		From(entsql.Table(runTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	run, err := scanRun(r.db.Driver.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("extraction run " + id.String())
	}
	if err != nil {
		return nil, common.WrapError(err, "get extraction run")
	}
	return run, nil
}

func (r *runRepo) ListRecent(ctx context.Context, limit int) ([]*ExtractionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args := r.builder().
		Select(runColumns...).
		From(entsql.Table(runTable)).
		OrderBy(entsql.Desc("created_at")).
		Limit(limit).
		Query()
	rows, err := r.db.Driver.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "list extraction runs")
	}
	defer rows.Close()

	var runs []*ExtractionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan extraction run")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*ExtractionRun, error) {
	var (
		run      ExtractionRun
		idStr    string
		status   string
		finished sql.NullTime
	)
	err := row.Scan(&idStr, &run.SourcePath, &run.ContentHash, &run.IdentifierField, &status,
		&run.UnitCount, &run.ArtifactCount, &run.FailureCount,
		&run.OutputURI, &run.ManifestURI, &run.ErrorMessage,
		&run.StartedAt, &finished, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	run.Status = constants.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
