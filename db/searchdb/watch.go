package searchdb

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/meghashyamc/keywordsearch/storage"
)

// Watch forgets cached readers of index directories removed or renamed under root
// until ctx is done.
func (b *BleveDB) Watch(ctx context.Context, root string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		b.logger.Error("could not create storage watcher", "err", err.Error())
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		watcher.Close()
		b.logger.Error("could not watch storage root", "root", root, "err", err.Error())
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				b.logger.Info("storage watcher stopped", "reason", ctx.Err())
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				if !storage.IsIndexDir(filepath.Base(event.Name)) {
					continue
				}
				b.logger.Info("index directory went away, dropping cached reader", "path", event.Name)
				b.Forget(event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				b.logger.Warn("storage watcher error", "err", err.Error())
			}
		}
	}()

	return nil
}
