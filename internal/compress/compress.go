// Package compress wraps output streams in the codecs archive files are written with.
package compress

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// Level selects how hard the codec works.
type Level int

const (
	LevelNone Level = iota
	LevelFast
	LevelBest
)

// ParseLevel maps a selector to a Level. Names and their numeric forms are
// accepted; anything else selects LevelBest.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "0":
		return LevelNone
	case "fast", "1":
		return LevelFast
	default:
		return LevelBest
	}
}

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelFast:
		return "fast"
	default:
		return "best"
	}
}

// Codec names the stream format around the archive.
type Codec string

const (
	CodecGzip Codec = "gzip"
	CodecLZ4  Codec = "lz4"
	CodecNone Codec = "none"
)

// ParseCodec validates a codec name. The empty string selects gzip.
func ParseCodec(s string) (Codec, error) {
	switch c := Codec(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CodecGzip, nil
	case CodecGzip, CodecLZ4, CodecNone:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

// Wrap returns a writer that compresses into w. Closing it flushes the
// codec's footer but does not close w.
func Wrap(w io.Writer, codec Codec, level Level) (io.WriteCloser, error) {
	switch codec {
	case CodecGzip, "":
		return gzip.NewWriterLevel(w, gzipLevel(level))

	case CodecLZ4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
			return nil, fmt.Errorf("configure lz4: %w", err)
		}
		return zw, nil

	case CodecNone:
		return nopCloser{w}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codec)
	}
}

// NewReader returns a reader decompressing r with the given codec.
func NewReader(r io.Reader, codec Codec) (io.ReadCloser, error) {
	switch codec {
	case CodecGzip, "":
		return gzip.NewReader(r)
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CodecNone:
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codec)
	}
}

func gzipLevel(l Level) int {
	switch l {
	case LevelNone:
		return gzip.NoCompression
	case LevelFast:
		return gzip.BestSpeed
	default:
		return gzip.BestCompression
	}
}

// lz4 frames have no stored mode, so none and fast share the fast path.
func lz4Level(l Level) lz4.CompressionLevel {
	if l == LevelBest {
		return lz4.Level9
	}
	return lz4.Fast
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
