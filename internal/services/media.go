package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MediaStore persists chat attachments.
type MediaStore interface {
	Save(ctx context.Context, ext string, data []byte) (string, error)
	Remove(ctx context.Context, path string) error
}

// FileMediaStore writes attachments below a directory using random names.
type FileMediaStore struct {
	dir string
}

// NewFileMediaStore creates dir when needed and returns a store rooted there.
func NewFileMediaStore(dir string) (*FileMediaStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("media store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("media store: create directory: %w", err)
	}
	return &FileMediaStore{dir: dir}, nil
}

// Save writes data to a new file and returns its path.
func (s *FileMediaStore) Save(ctx context.Context, ext string, data []byte) (string, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return "", err
	}
	name := uuid.NewString() + sanitizeExt(ext)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("media store: write %s: %w", name, err)
	}
	return path, nil
}

// Remove deletes a stored attachment. Missing files are ignored.
func (s *FileMediaStore) Remove(_ context.Context, path string) error {
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(s.dir)+string(filepath.Separator)) {
		return fmt.Errorf("media store: %s is outside the media directory", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("media store: remove: %w", err)
	}
	return nil
}

func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	if len(ext) > 8 {
		return ""
	}
	return ext
}
