package repository

import (
	"context"

	"github.com/guirra-byte/contracts-extractor/internal/common"
)

// Portable DDL: TEXT/INTEGER/TIMESTAMP behave the same under modernc
// sqlite and Postgres.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS extraction_runs (
		id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		identifier_field TEXT NOT NULL DEFAULT 'unitCode',
		status TEXT NOT NULL,
		unit_count INTEGER NOT NULL DEFAULT 0,
		artifact_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0,
		output_uri TEXT NOT NULL DEFAULT '',
		manifest_uri TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_extraction_runs_status ON extraction_runs (status)`,
	`CREATE TABLE IF NOT EXISTS run_artifacts (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES extraction_runs (id),
		manifest_key TEXT NOT NULL,
		name TEXT NOT NULL,
		uri TEXT NOT NULL,
		chunk_id TEXT NOT NULL,
		page INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		region TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_run_artifacts_run ON run_artifacts (run_id)`,
}

// Migrate applies the schema. Statements are idempotent so it runs at every
// startup.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range migrations {
		if _, err := db.Driver.DB().ExecContext(ctx, stmt); err != nil {
			return common.WrapError(err, "migrate schema")
		}
	}
	db.log.Info("schema migrated", "statements", len(migrations))
	return nil
}
