package writer

import "errors"

var (
	// ErrCreate means the target could not create the output object.
	ErrCreate = errors.New("create output")
	// ErrEncode means a record failed to serialize.
	ErrEncode = errors.New("encode record")
	// ErrEntryNameTooLong means an entry name does not fit the ustar header.
	ErrEntryNameTooLong = errors.New("archive entry name too long")
	// ErrWrite covers write, flush and close failures mid-file.
	ErrWrite = errors.New("write output")

	ErrUnknownMode = errors.New("unknown output mode")
)
