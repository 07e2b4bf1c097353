package objectstore

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// LocalStore writes objects under a root directory, mirroring key paths.
// Writes go to a temp file in the target directory and are renamed into
// place, so a reader never observes a partial file.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

func (l *LocalStore) Name() string { return "file://" + l.root }

func (l *LocalStore) Put(ctx context.Context, key string, body []byte, _ string) error {
	if key == "" {
		return ErrEmptyKey
	}
	clean := path.Clean("/" + key)
	if strings.HasSuffix(key, "/") || clean == "/" {
		return fmt.Errorf("objectstore: invalid key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}

var _ ports.ObjectStore = (*LocalStore)(nil)
