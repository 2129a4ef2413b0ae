// Package artifacts manages saved audio recordings on disk. Artifacts are
// opaque to the rest of the pipeline: the orchestrator only reads them and
// the history store only carries their refs. Deletion is always sequenced
// after the store mutation that released the ref, so a crash between the
// two leaves at worst an orphaned file, never a dangling reference.
package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"murmur/pkg/logger"
)

// Store keeps audio artifacts as uuid-named files under a single directory.
type Store struct {
	dir    string
	logger *logger.Logger
}

// NewStore creates the artifact directory if needed.
func NewStore(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{dir: dir, logger: log.Named("artifacts")}, nil
}

// Save writes the audio stream to a new artifact and returns its ref
// (the file name, not the full path).
func (s *Store) Save(r io.Reader, ext string) (string, error) {
	if ext == "" {
		ext = ".bin"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ref := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(s.dir, ref))
	if err != nil {
		return "", fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	return ref, nil
}

// Path resolves a ref to its on-disk path. Refs are validated against path
// traversal since they round-trip through the history store.
func (s *Store) Path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) {
		return "", fmt.Errorf("invalid artifact ref: %q", ref)
	}
	return filepath.Join(s.dir, ref), nil
}

// Delete removes the artifact for ref. A missing file is not an error: the
// caller may be releasing a ref whose file was already cleaned up.
func (s *Store) Delete(ref string) error {
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	s.logger.Debug("Artifact released", logger.String("ref", ref))
	return nil
}

// DeleteAll removes the artifacts for every ref, logging failures rather
// than aborting: the corresponding history rows are already gone.
func (s *Store) DeleteAll(refs []string) {
	for _, ref := range refs {
		if err := s.Delete(ref); err != nil {
			s.logger.Warn("Failed to release artifact",
				logger.String("ref", ref), logger.Error(err))
		}
	}
}
