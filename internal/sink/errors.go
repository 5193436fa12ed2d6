package sink

import "errors"

var (
	ErrTargetUnavailable = errors.New("target unavailable")
	ErrInvalidTarget     = errors.New("invalid target")
)
