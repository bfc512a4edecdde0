package searchdb

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/meghashyamc/keywordsearch/logger"
)

type bleveWriter struct {
	index        bleve.Index
	batch        *bleve.Batch
	logger       logger.Logger
	memoryBudget int
	pendingBytes int
	nextID       int
	closed       bool
}

func newBleveWriter(index bleve.Index, logger logger.Logger, memoryBudget int) *bleveWriter {
	return &bleveWriter{
		index:        index,
		batch:        index.NewBatch(),
		logger:       logger,
		memoryBudget: memoryBudget,
	}
}

// Add queues a document. Documents get sequential ids so the engine's internal
// order follows submission order.
func (w *bleveWriter) Add(doc Document) error {
	if w.closed {
		return ErrWriterClosed
	}

	id := fmt.Sprintf("%08d", w.nextID)
	w.nextID++

	if err := w.batch.Index(id, doc); err != nil {
		w.logger.Error("could not index document", "id", id, "err", err.Error())
		return err
	}
	w.pendingBytes += len(doc.Title) + len(doc.Body)

	if w.pendingBytes >= w.memoryBudget {
		return w.flush()
	}

	return nil
}

func (w *bleveWriter) flush() error {
	if w.batch.Size() == 0 {
		return nil
	}

	w.logger.Debug("flushing index batch", "documents", w.batch.Size(), "bytes", w.pendingBytes)
	if err := w.index.Batch(w.batch); err != nil {
		w.logger.Error("could not flush index batch", "err", err.Error())
		return fmt.Errorf("%w: %w", ErrFlushFailed, err)
	}
	w.batch.Reset()
	w.pendingBytes = 0

	return nil
}

func (w *bleveWriter) Commit() error {
	if w.closed {
		return ErrWriterClosed
	}

	if err := w.flush(); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}

func (w *bleveWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.index.Close(); err != nil {
		w.logger.Error("could not close index", "err", err.Error())
		return fmt.Errorf("failed to close index: %w", err)
	}

	return nil
}
