package history

// Backend is the bucketed key-value store the run ledger is kept in.
// ForEach must visit keys in ascending byte order.
type Backend interface {
	CreateBucket(name []byte) error
	Put(bucket, key, value []byte) error
	Get(bucket, key []byte) ([]byte, error)
	Delete(bucket, key []byte) error
	ForEach(bucket []byte, fn func(k, v []byte) error) error
	Close() error
}
