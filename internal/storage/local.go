// Package storage keeps processed diagnosis images on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalStore writes images under a directory that the API serves statically.
type LocalStore struct {
	dir        string
	publicPath string
	logger     *logrus.Logger
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(dir, publicPath string, logger *logrus.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &LocalStore{
		dir:        dir,
		publicPath: strings.TrimRight(publicPath, "/"),
		logger:     logger,
	}, nil
}

// Save writes body to dir/name and returns publicPath/name.
func (s *LocalStore) Save(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.WithFields(logrus.Fields{
		"file":         name,
		"bytes":        n,
		"content_type": contentType,
	}).Debug("Image stored")
	return s.publicPath + "/" + name, nil
}

// Delete removes dir/name.
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if !validName(name) {
		return fmt.Errorf("invalid image name %q", name)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

func validName(name string) bool {
	return name != "" && name == filepath.Base(name) && name != "." && name != ".."
}

// Dir is the directory served at the public path.
func (s *LocalStore) Dir() string {
	return s.dir
}
