package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/common"
	"github.com/guirra-byte/contracts-extractor/internal/geometry"
	"github.com/guirra-byte/contracts-extractor/internal/provenance"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(context.Background(), common.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + filepath.Join(t.TempDir(), "test.db"),
	}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(db.Close)
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewRunRepository(db, nil)
	ctx := context.Background()

	run := &ExtractionRun{SourcePath: "/data/empreendimento.pdf", ContentHash: "abc123"}
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if run.ID == uuid.Nil {
		t.Fatalf("Create did not assign an ID")
	}

	got, err := repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != constants.RunStatusQueued {
		t.Errorf("Status = %q, want QUEUED", got.Status)
	}
	if got.SourcePath != "/data/empreendimento.pdf" || got.ContentHash != "abc123" {
		t.Errorf("roundtrip lost fields: %+v", got)
	}
	if got.IdentifierField != "unitCode" {
		t.Errorf("IdentifierField = %q", got.IdentifierField)
	}
	if got.FinishedAt != nil {
		t.Errorf("FinishedAt set before finish")
	}

	if err := repo.UpdateStatus(ctx, run.ID, constants.RunStatusRunning); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := repo.FinishSuccess(ctx, run.ID, FinishResult{
		UnitCount:     3,
		ArtifactCount: 7,
		FailureCount:  1,
		OutputURI:     "file:///out/run/consolidated.json",
		ManifestURI:   "file:///out/run/cutouts_manifest.json",
	}); err != nil {
		t.Fatalf("FinishSuccess: %v", err)
	}

	got, err = repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get after finish: %v", err)
	}
	if got.Status != constants.RunStatusDone {
		t.Errorf("Status = %q, want DONE", got.Status)
	}
	if got.UnitCount != 3 || got.ArtifactCount != 7 || got.FailureCount != 1 {
		t.Errorf("counters = %d/%d/%d", got.UnitCount, got.ArtifactCount, got.FailureCount)
	}
	if got.ManifestURI == "" || got.FinishedAt == nil {
		t.Errorf("finish fields missing: %+v", got)
	}
}

func TestRunFinishFailure(t *testing.T) {
	db := testDB(t)
	repo := NewRunRepository(db, nil)
	ctx := context.Background()

	run := &ExtractionRun{SourcePath: "/data/bad.pdf"}
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.FinishFailure(ctx, run.ID, "open document: not a pdf"); err != nil {
		t.Fatalf("FinishFailure: %v", err)
	}

	got, err := repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != constants.RunStatusFailed {
		t.Errorf("Status = %q, want FAILED", got.Status)
	}
	if got.ErrorMessage != "open document: not a pdf" {
		t.Errorf("ErrorMessage = %q", got.ErrorMessage)
	}
}

func TestGetMissingRun(t *testing.T) {
	db := testDB(t)
	repo := NewRunRepository(db, nil)

	_, err := repo.Get(context.Background(), uuid.New())
	if err == nil {
		t.Fatalf("missing run returned without error")
	}
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListRecent(t *testing.T) {
	db := testDB(t)
	repo := NewRunRepository(db, nil)
	ctx := context.Background()

	var last uuid.UUID
	for i := 0; i < 3; i++ {
		run := &ExtractionRun{SourcePath: "/data/contract.pdf"}
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		last = run.ID
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != last {
		t.Errorf("newest run not first")
	}
}

func TestArtifactBatchRoundTrip(t *testing.T) {
	db := testDB(t)
	runs := NewRunRepository(db, nil)
	arts := NewArtifactRepository(db, nil)
	ctx := context.Background()

	run := &ExtractionRun{SourcePath: "/data/contract.pdf"}
	if err := runs.Create(ctx, run); err != nil {
		t.Fatalf("Create run: %v", err)
	}

	entries := []provenance.Entry{
		{Key: "unit1_sellValue", Artifact: provenance.Artifact{
			URI: "file:///out/unit1_sellValue_chunk_005_page3.png", Name: "unit1_sellValue_chunk_005_page3.png",
			ChunkID: "chunk_005", Page: 3, Seq: 2,
			Region: geometry.Region{Left: 90, Top: 90, Right: 310, Bottom: 160},
		}},
		{Key: "unit1_unitCode", Artifact: provenance.Artifact{
			URI: "file:///out/unit1_unitCode_chunk_002_page1.png", Name: "unit1_unitCode_chunk_002_page1.png",
			ChunkID: "chunk_002", Page: 1, Seq: 0,
		}},
		{Key: "unit1_unitCode", Artifact: provenance.Artifact{
			URI: "file:///out/unit1_unitCode_chunk_009_page2.png", Name: "unit1_unitCode_chunk_009_page2.png",
			ChunkID: "chunk_009", Page: 2, Seq: 1,
		}},
	}
	if err := arts.CreateBatch(ctx, run.ID, entries); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	stored, err := arts.ListByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored %d artifacts, want 3", len(stored))
	}
	if stored[0].ManifestKey != "unit1_sellValue" {
		t.Errorf("order: first key = %q", stored[0].ManifestKey)
	}
	if stored[1].Seq != 0 || stored[2].Seq != 1 {
		t.Errorf("unit1_unitCode artifacts out of seq order: %d, %d", stored[1].Seq, stored[2].Seq)
	}
	if got := stored[0].Region; got.Right != 310 || got.Bottom != 160 {
		t.Errorf("region roundtrip = %+v", got)
	}
	if stored[0].RunID != run.ID {
		t.Errorf("RunID = %v", stored[0].RunID)
	}
}

func TestCreateBatchEmpty(t *testing.T) {
	db := testDB(t)
	arts := NewArtifactRepository(db, nil)
	if err := arts.CreateBatch(context.Background(), uuid.New(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	db := testDB(t)
	if err := db.HealthCheck(context.Background(), time.Second); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
