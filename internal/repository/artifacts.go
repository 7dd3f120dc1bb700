package repository

import (
	"context"
	"encoding/json"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/guirra-byte/contracts-extractor/internal/common"
	"github.com/guirra-byte/contracts-extractor/internal/geometry"
	"github.com/guirra-byte/contracts-extractor/internal/provenance"
)

const artifactTable = "run_artifacts"

var artifactColumns = []string{
	"id", "run_id", "manifest_key", "name", "uri", "chunk_id", "page", "seq", "region",
}

// StoredArtifact is one persisted cutout row.
type StoredArtifact struct {
	ID          uuid.UUID
	RunID       uuid.UUID
	ManifestKey string
	Name        string
	URI         string
	ChunkID     string
	Page        int
	Seq         int
	Region      geometry.Region
}

type ArtifactRepository interface {
	CreateBatch(ctx context.Context, runID uuid.UUID, entries []provenance.Entry) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]*StoredArtifact, error)
}

type artifactRepo struct {
	db  *DB
	log *slog.Logger
}

func NewArtifactRepository(db *DB, log *slog.Logger) ArtifactRepository {
	if log == nil {
		log = slog.Default()
	}
	return &artifactRepo{db: db, log: log}
}

func (r *artifactRepo) CreateBatch(ctx context.Context, runID uuid.UUID, entries []provenance.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	b := entsql.Dialect(r.db.Driver.Dialect()).
		Insert(artifactTable).
		Columns(artifactColumns...)
	for _, e := range entries {
		region, err := json.Marshal(e.Artifact.Region)
		if err != nil {
			return common.WrapError(err, "encode artifact region")
		}
		b.Values(uuid.New().String(), runID.String(), e.Key,
			e.Artifact.Name, e.Artifact.URI, e.Artifact.ChunkID,
			e.Artifact.Page, e.Artifact.Seq, string(region))
	}

	query, args := b.Query()
	if _, err := r.db.Driver.DB().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("run_artifacts batch insert failed", "run_id", runID, "count", len(entries), "err", err)
		return common.WrapError(err, "insert run artifacts")
	}
	r.log.Info("run_artifacts saved", "run_id", runID, "count", len(entries))
	return nil
}

func (r *artifactRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]*StoredArtifact, error) {
	query, args := entsql.Dialect(r.db.Driver.Dialect()).
		Select(artifactColumns...).
		From(entsql.Table(artifactTable)).
		Where(entsql.EQ("run_id", runID.String())).
		OrderBy(entsql.Asc("manifest_key"), entsql.Asc("seq")).
		Query()
	rows, err := r.db.Driver.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "list run artifacts")
	}
	defer rows.Close()

	var out []*StoredArtifact
	for rows.Next() {
		var (
			a      StoredArtifact
			id     string
			run    string
			region string
		)
		if err := rows.Scan(&id, &run, &a.ManifestKey, &a.Name, &a.URI, &a.ChunkID, &a.Page, &a.Seq, &region); err != nil {
			return nil, common.WrapError(err, "scan run artifact")
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if a.RunID, err = uuid.Parse(run); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(region), &a.Region); err != nil {
			return nil, common.WrapError(err, "decode artifact region")
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
