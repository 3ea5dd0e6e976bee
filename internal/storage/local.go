// Package storage persists uploaded bundle artifacts. Artifacts are immutable
// once written; the download path serves identical bytes forever.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	appErr "github.com/updrift/engine/pkg/errors"
)

// Store is the artifact store consumed by the release service and download
// handler.
type Store interface {
	// Save streams an uploaded bundle into the store and returns its
	// store-relative path and size.
	Save(name string, src io.Reader) (path string, size int64, err error)
	// Open returns a seekable reader for a stored bundle.
	Open(path string) (io.ReadSeekCloser, error)
	Remove(path string) error
}

type localStore struct {
	root string
}

// NewLocalStore creates a disk-backed store rooted at dir, creating it if
// needed.
func NewLocalStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &localStore{root: dir}, nil
}

func (s *localStore) Save(name string, src io.Reader) (string, int64, error) {
	rel := filepath.Join("bundles", name+".zip")
	abs := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", 0, appErr.Wrap(err, appErr.CodeInternal, "create bundle dir failed")
	}

	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, appErr.Wrap(err, appErr.CodeInternal, "create bundle file failed")
	}
	defer f.Close()

	n, err := io.Copy(f, src)
	if err != nil {
		_ = os.Remove(abs)
		return "", 0, appErr.Wrap(err, appErr.CodeInternal, "write bundle failed")
	}
	return rel, n, nil
}

func (s *localStore) Open(path string) (io.ReadSeekCloser, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.Clean(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErr.New(appErr.CodeNotFound, "bundle not found")
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "open bundle failed")
	}
	return f, nil
}

func (s *localStore) Remove(path string) error {
	if err := os.Remove(filepath.Join(s.root, filepath.Clean(path))); err != nil && !os.IsNotExist(err) {
		return appErr.Wrap(err, appErr.CodeInternal, "remove bundle failed")
	}
	return nil
}
