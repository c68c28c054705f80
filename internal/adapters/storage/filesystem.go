package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pralapin/school-service/internal/core/ports"
)

// Filesystem stores objects under a local directory and serves them from
// baseURL.
type Filesystem struct {
	root    string
	baseURL string
}

var _ ports.ObjectStore = (*Filesystem)(nil)

func NewFilesystem(root, baseURL string) *Filesystem {
	return &Filesystem{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (f *Filesystem) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(f.root, clean), nil
}

func (f *Filesystem) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	p, err := f.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	return f.baseURL + "/" + filepath.ToSlash(key), nil
}

func (f *Filesystem) Delete(ctx context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Root is the directory objects are written under.
func (f *Filesystem) Root() string { return f.root }
