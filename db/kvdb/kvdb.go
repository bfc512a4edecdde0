package kvdb

const (
	IndicesBucket  = "indices"
	ArchivesBucket = "archives"
)

var buckets = []string{IndicesBucket, ArchivesBucket}

type DB interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	GetAllKeys(bucket string) ([]string, error)
	Close() error
}
