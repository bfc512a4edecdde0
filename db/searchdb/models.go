package searchdb

import (
	"errors"
	"fmt"
)

const (
	FieldTitle = "title"
	FieldBody  = "body"

	// UnknownValue stands in for a field that is absent or not stored.
	UnknownValue = "Unknown"
)

var (
	ErrInvalidQuery = errors.New("invalid query")
	ErrWriterClosed = errors.New("index writer is closed")
	// ErrFlushFailed means queued documents may not have been written. It concerns
	// every document added since the last flush, not just the last one.
	ErrFlushFailed = errors.New("failed to flush batch")
)

type Document struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Title string  `json:"title"`
	Body  string  `json:"body"`
}

type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func (e *QueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}
