package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/meghashyamc/keywordsearch/logger"
)

const defaultMediaType = "application/octet-stream"

// Upload clients often omit or mislabel the part content type, hence octet-stream.
var allowedMediaTypes = map[string]struct{}{
	"text/plain":               {},
	"text/markdown":            {},
	"application/octet-stream": {},
}

var errEmptyContent = errors.New(MsgEmptyContent)

type DocumentInput struct {
	Content *string `json:"content" validate:"required"`
	Title   *string `json:"title"`
}

type Decoder struct {
	logger           logger.Logger
	maxDocumentBytes int64
}

func New(logger logger.Logger, maxDocumentBytes int64) *Decoder {
	return &Decoder{logger: logger, maxDocumentBytes: maxDocumentBytes}
}

// DecodeBatch turns JSON batch records into documents. Records without a title are
// reported under the name "Unknown".
func (d *Decoder) DecodeBatch(inputs []DocumentInput) *Batch {
	d.logger.Info("decoding document batch", "documents", len(inputs))

	batch := &Batch{}
	for i, input := range inputs {
		filename := UntitledFilename
		if input.Title != nil {
			filename = *input.Title
		}
		content := ""
		if input.Content != nil {
			content = *input.Content
		}

		d.logger.Debug("decoding document", "document_number", i+1, "filename", filename, "content_length", len(content))
		d.admit(batch, filename, input.Title, content)
	}

	return batch
}

// DecodeMultipart reads every part of an upload in arrival order. Parts with an
// unsupported media type are never read. A broken stream ends decoding and keeps the
// outcomes gathered so far.
func (d *Decoder) DecodeMultipart(ctx context.Context, reader *multipart.Reader) *Batch {
	batch := &Batch{}
	fieldCount := 0

	for {
		if ctx.Err() != nil {
			d.logger.Warn("multipart decoding cancelled", "fields", fieldCount, "err", ctx.Err())
			break
		}

		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			d.logger.Warn("could not read next multipart field", "fields", fieldCount, "err", err.Error())
			break
		}
		fieldCount++

		d.decodePart(batch, part, fieldCount)
		part.Close()
	}

	indexed, failed := batch.Counts()
	d.logger.Info("multipart decoding completed", "total_fields", fieldCount, "successful", indexed, "failed", failed)

	return batch
}

func (d *Decoder) decodePart(batch *Batch, part *multipart.Part, fieldNumber int) {
	filename := part.FileName()
	if filename == "" {
		filename = UnknownFilename
	}
	contentType := part.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultMediaType
	}

	d.logger.Info("processing field", "field_number", fieldNumber, "filename", filename, "content_type", contentType)

	if !isAllowedMediaType(contentType) {
		d.logger.Warn("unsupported file type", "field_number", fieldNumber, "filename", filename, "content_type", contentType)
		batch.fail(filename, MsgUnsupportedFileType)
		return
	}

	data, err := d.readPart(part)
	if err != nil {
		d.logger.Error("could not read field content", "filename", filename, "err", err.Error())
		batch.fail(filename, fmt.Sprintf("Failed to read file: %s", err))
		return
	}

	if !utf8.Valid(data) {
		d.logger.Error("utf-8 decoding failed", "filename", filename)
		batch.fail(filename, MsgInvalidUTF8)
		return
	}

	d.admit(batch, filename, nil, string(data))
}

func (d *Decoder) readPart(part *multipart.Part) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(part, d.maxDocumentBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > d.maxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %s limit", humanize.Bytes(uint64(d.maxDocumentBytes)))
	}

	return data, nil
}

// admit records the outcome for decoded content and keeps the document if the
// content is acceptable.
func (d *Decoder) admit(batch *Batch, filename string, title *string, content string) {
	if err := validateContent(content); err != nil {
		d.logger.Warn("content rejected", "filename", filename, "err", err.Error())
		batch.fail(filename, err.Error())
		return
	}

	slot := batch.indexed(filename)
	batch.Documents = append(batch.Documents, Document{Title: title, Content: content, Slot: slot})
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errEmptyContent
	}
	return nil
}

func isAllowedMediaType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := allowedMediaTypes[mediaType]
	return ok
}
