package history

import "errors"

var (
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrRunNotFound        = errors.New("run not found")
	ErrMissingID          = errors.New("run has no id")
	ErrIncompatibleSchema = errors.New("incompatible ledger schema")
)
