package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/guirra-byte/contracts-extractor/internal/common"
)

// FSStore is a directory-backed Store producing file:// URIs. Writes go
// through a same-directory temp file and rename, so readers never observe a
// half-written artifact.
type FSStore struct {
	root   string
	logger *slog.Logger
}

func NewFSStore(root string, logger *slog.Logger) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("fsstore: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fsstore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("fsstore: create root: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSStore{root: abs, logger: logger}, nil
}

// Put implements Store.
func (s *FSStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest, err := s.mapPath(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("fsstore: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("fsstore: temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if cErr := tmp.Close(); err == nil {
		err = cErr
	}
	if err == nil {
		err = os.Rename(tmpPath, dest)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("fsstore: write %s: %w", name, err)
	}

	s.logger.Debug("store.put", "name", name, "bytes", n)
	return s.URI(name), nil
}

// Open implements Store.
func (s *FSStore) Open(name string) (io.ReadCloser, error) {
	dest, err := s.mapPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(dest)
	if os.IsNotExist(err) {
		return nil, common.NotFoundErrorf("artifact %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("fsstore: open %s: %w", name, err)
	}
	return f, nil
}

// URI implements Store.
func (s *FSStore) URI(name string) string {
	dest, err := s.mapPath(name)
	if err != nil {
		return ""
	}
	return "file://" + filepath.ToSlash(dest)
}

// mapPath joins name under the root and rejects anything that would escape
// it.
func (s *FSStore) mapPath(name string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if rel == "." || rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("fsstore: invalid name %q", name)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("fsstore: invalid name %q", name)
	}
	return filepath.Join(s.root, rel), nil
}
