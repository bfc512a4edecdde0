// Package storage describes the on-disk layout of the storage root: one directory per
// index named index-<uuid>, plus a <name>.tar.gz archive next to it once packaged.
// Archive lock files live apart from both, under .locks.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	indexNamePrefix  = "index-"
	archiveExtension = ".tar.gz"
	lockExtension    = ".lock"
	locksDir         = ".locks"
)

var ErrIndexNotFound = errors.New("index not found")

type Root struct {
	path string
}

func New(path string) (*Root, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root %s: %w", path, err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", absPath, err)
	}

	return &Root{path: absPath}, nil
}

func (r *Root) Path() string {
	return r.path
}

// NewIndexName returns a fresh index name that has never been used under any storage root.
func NewIndexName() string {
	return indexNamePrefix + uuid.New().String()
}

func (r *Root) IndexPath(name string) string {
	return filepath.Join(r.path, name)
}

func (r *Root) ArchiveName(name string) string {
	return name + archiveExtension
}

func (r *Root) ArchivePath(name string) string {
	return filepath.Join(r.path, r.ArchiveName(name))
}

// LockPath returns the lock file guarding the packaging of the named index's archive.
func (r *Root) LockPath(name string) string {
	return filepath.Join(r.path, locksDir, r.ArchiveName(name)+lockExtension)
}

// IndexExists reports whether a directory for the named index is present. Names that
// could not have been generated never exist, so callers cannot escape the root.
func (r *Root) IndexExists(name string) (bool, error) {
	if !IsIndexDir(name) {
		return false, nil
	}
	info, err := os.Stat(r.IndexPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return info.IsDir(), nil
}

// IsIndexDir reports whether a base name looks like an index directory name.
func IsIndexDir(base string) bool {
	if len(base) <= len(indexNamePrefix) || base[:len(indexNamePrefix)] != indexNamePrefix {
		return false
	}
	_, err := uuid.Parse(base[len(indexNamePrefix):])
	return err == nil
}
