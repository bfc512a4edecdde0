package kvdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid key")
)

type InvalidKeyError struct {
	Key    string
	Reason string
}
type NotFoundError struct {
	Key string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %s: %s", e.Key, e.Reason)
}

func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key not found: %s", e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IndexRecord describes a committed index.
type IndexRecord struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Documents int       `json:"documents"`
	Indexed   int       `json:"indexed"`
	Failed    int       `json:"failed"`
}

// ArchiveRecord describes a packaged index archive.
type ArchiveRecord struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type Setter interface {
	Set(bucket string, key string, value string) error
}

type Getter interface {
	Get(bucket string, key string) (string, error)
}

func SetRecord(db Setter, bucket string, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record for %s: %w", key, err)
	}

	return db.Set(bucket, key, string(data))
}

func GetRecord[T any](db Getter, bucket string, key string) (*T, error) {
	value, err := db.Get(bucket, key)
	if err != nil {
		return nil, err
	}

	var record T
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record for %s: %w", key, err)
	}

	return &record, nil
}
