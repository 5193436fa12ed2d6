package record

import "errors"

var (
	ErrEncode     = errors.New("encode record")
	ErrDecode     = errors.New("decode record")
	ErrOutOfRange = errors.New("record field out of range")
)
