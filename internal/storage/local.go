package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore writes objects below a directory that the HTTP server exposes at BaseURL.
type LocalStore struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

func NewLocalStore(dir, baseURL string, logger *slog.Logger) (*LocalStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}, nil
}

func (s *LocalStore) Name() string { return "local" }

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (*Object, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return nil, fmt.Errorf("write object: %w", err)
	}

	rel := strings.TrimPrefix(path.Clean("/"+key), "/")
	s.logger.Debug("Stored upload on disk", "key", rel, "bytes", len(data))
	return &Object{
		Key:      rel,
		URL:      s.baseURL + "/" + rel,
		Size:     int64(len(data)),
		MimeType: contentType,
	}, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// resolve maps a key to a path inside dir, refusing keys that escape it.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}
