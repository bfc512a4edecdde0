// Package archive packages committed indices into tar.gz snapshots stored next to
// the index directory. Packaging happens at most once per index.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/renameio"
	"github.com/meghashyamc/keywordsearch/db/kvdb"
	"github.com/meghashyamc/keywordsearch/logger"
	"github.com/meghashyamc/keywordsearch/storage"
	"golang.org/x/sync/singleflight"
)

const (
	lockRetryDelay = 50 * time.Millisecond
	archiveMode    = 0644
)

// MetadataStore represents the registry operations needed to record archives
type MetadataStore interface {
	Set(bucket string, key string, value string) error
}

type Packager struct {
	logger        logger.Logger
	root          *storage.Root
	metadataStore MetadataStore
	group         singleflight.Group
}

func New(logger logger.Logger, root *storage.Root, metadataStore MetadataStore) *Packager {
	return &Packager{
		logger:        logger,
		root:          root,
		metadataStore: metadataStore,
	}
}

// Package returns the path of the archive for the named index, building it first if
// it does not exist yet. Concurrent calls for the same index share one build, and the
// archive path never holds a partially written file.
func (p *Packager) Package(ctx context.Context, name string) (string, error) {
	archivePath := p.root.ArchivePath(name)
	if exists, err := fileExists(archivePath); err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	} else if exists {
		p.logger.Debug("archive already exists", "index_name", name, "path", archivePath)
		return archivePath, nil
	}

	result, err, shared := p.group.Do(name, func() (interface{}, error) {
		return p.build(context.WithoutCancel(ctx), name)
	})
	if err != nil {
		return "", err
	}
	if shared {
		p.logger.Debug("archive build shared with concurrent request", "index_name", name)
	}

	return result.(string), nil
}

func (p *Packager) build(ctx context.Context, name string) (string, error) {
	archivePath := p.root.ArchivePath(name)
	indexPath := p.root.IndexPath(name)

	lockPath := p.root.LockPath(name)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		p.logger.Error("could not create lock directory", "path", lockPath, "err", err.Error())
		return "", fmt.Errorf("failed to create lock directory: %w", err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		p.logger.Error("could not lock archive", "index_name", name, "err", err.Error())
		return "", fmt.Errorf("failed to acquire archive lock: %w", err)
	}
	if !locked {
		return "", errors.New("failed to acquire archive lock")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("could not release archive lock", "index_name", name, "err", err.Error())
		}
	}()

	// another process may have finished the archive while we waited
	if exists, err := fileExists(archivePath); err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	} else if exists {
		return archivePath, nil
	}

	exists, err := p.root.IndexExists(name)
	if err != nil {
		return "", fmt.Errorf("failed to stat index: %w", err)
	}
	if !exists {
		return "", storage.ErrIndexNotFound
	}

	p.logger.Info("starting index compression", "index_name", name, "source", indexPath)
	pending, err := renameio.TempFile(p.root.Path(), archivePath)
	if err != nil {
		p.logger.Error("could not create pending archive", "path", archivePath, "err", err.Error())
		return "", fmt.Errorf("failed to create compressed index file: %w", err)
	}
	defer pending.Cleanup()

	if err := writeArchive(pending, indexPath); err != nil {
		p.logger.Error("could not compress index directory", "source", indexPath, "err", err.Error())
		return "", fmt.Errorf("failed to compress index directory: %w", err)
	}
	if err := pending.Chmod(archiveMode); err != nil {
		return "", fmt.Errorf("failed to set archive permissions: %w", err)
	}
	info, err := pending.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat pending archive: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		p.logger.Error("could not publish archive", "path", archivePath, "err", err.Error())
		return "", fmt.Errorf("failed to finalize index compression: %w", err)
	}

	p.logger.Info("index compression completed", "index_name", name, "path", archivePath, "size", humanize.Bytes(uint64(info.Size())))
	p.recordArchive(name, info.Size())

	return archivePath, nil
}

func (p *Packager) recordArchive(name string, size int64) {
	record := kvdb.ArchiveRecord{
		Name:      name,
		SizeBytes: size,
		CreatedAt: time.Now().UTC(),
	}
	if err := kvdb.SetRecord(p.metadataStore, kvdb.ArchivesBucket, name, record); err != nil {
		p.logger.Error("failed to record archive", "index_name", name, "err", err.Error())
	}
}

// writeArchive writes every file under dir into w as a gzip compressed tarball, with
// entry names relative to dir.
func writeArchive(w io.Writer, dir string) error {
	gzipWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzipWriter)

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tarWriter, file)
		return err
	})
	if err != nil {
		return err
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
