package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjia/cash-advance/internal/application/port"
	"go.uber.org/zap"
)

// ErrPathEscapesRoot is returned for relative paths that resolve outside the root
var ErrPathEscapesRoot = errors.New("path escapes storage root")

// LocalFileStorage implements port.FileStorage on a local directory
type LocalFileStorage struct {
	root   string
	logger *zap.Logger
}

// NewLocalFileStorage creates a store rooted at dir
func NewLocalFileStorage(dir string, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{root: dir, logger: logger}
}

var _ port.FileStorage = (*LocalFileStorage)(nil)

// Save writes content to path, creating parent directories
func (s *LocalFileStorage) Save(ctx context.Context, path string, content []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		s.logger.Error("Failed to create document directory",
			zap.String("path", full),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// write to a sibling temp file first so readers never see a partial document
	tmp := full + ".part"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	s.logger.Debug("Document saved",
		zap.String("path", path),
		zap.Int("size", len(content)))
	return nil
}

// Read returns the content stored at path
func (s *LocalFileStorage) Read(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// Exists reports whether a regular file is stored at path
func (s *LocalFileStorage) Exists(ctx context.Context, path string) bool {
	full, err := s.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes the file at path. Missing files are not an error.
func (s *LocalFileStorage) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete document",
			zap.String("path", full),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// resolve joins path onto the root and rejects anything that lands outside it
func (s *LocalFileStorage) resolve(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, path)
	}
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve storage root: %w", err)
	}
	full := filepath.Join(absRoot, path)
	if !strings.HasPrefix(full, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, path)
	}
	return full, nil
}
