// Package inspect reads generated files back and checks them record by record.
package inspect

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"pkg.jsn.cam/testdatagen/internal/compress"
	"pkg.jsn.cam/testdatagen/internal/record"
)

// Format is the detected layout of a file.
type Format string

const (
	FormatLines   Format = "lines"
	FormatTar     Format = "tar"
	FormatTarGzip Format = "tar+gzip"
	FormatTarLZ4  Format = "tar+lz4"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
	tarMagic  = []byte("ustar")

	entryNamePattern = regexp.MustCompile(`^[0-9]+_[0-9]+\.json$`)
)

const tarBlockSize = 512

// maxProblems caps how many problems a summary keeps verbatim.
const maxProblems = 20

// Entry is one archive member as read back.
type Entry struct {
	Name     string
	Declared int64
	Actual   int64
}

// Summary is the result of inspecting one file.
type Summary struct {
	Format         Format
	Records        int
	Entries        []Entry
	DuplicateNames int
	Problems       []string
	ProblemCount   int
}

// Valid reports whether no problems were found.
func (s *Summary) Valid() bool {
	return s.ProblemCount == 0
}

func (s *Summary) problemf(format string, args ...any) {
	s.ProblemCount++
	if len(s.Problems) < maxProblems {
		s.Problems = append(s.Problems, fmt.Sprintf(format, args...))
	}
}

// File inspects the file at path.
func File(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Inspect(f)
}

// Inspect detects the format of r and validates every record in it.
// Structural damage (a broken stream) is returned as an error; bad records
// are reported as problems in the summary.
func Inspect(r io.Reader) (*Summary, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	head, err := br.Peek(tarBlockSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return inspectCompressed(br, compress.CodecGzip, FormatTarGzip)
	case bytes.HasPrefix(head, lz4Magic):
		return inspectCompressed(br, compress.CodecLZ4, FormatTarLZ4)
	case isTar(head):
		return inspectTar(br, FormatTar)
	default:
		return inspectLines(br)
	}
}

// isTar matches a ustar header, or a zero block as written for an archive
// with no entries.
func isTar(head []byte) bool {
	if len(head) < tarBlockSize {
		return false
	}
	return bytes.Equal(head[257:262], tarMagic) || isZeroBlock(head[:tarBlockSize])
}

func isZeroBlock(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func inspectCompressed(r io.Reader, codec compress.Codec, format Format) (*Summary, error) {
	zr, err := compress.NewReader(r, codec)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", codec, err)
	}
	defer zr.Close()

	return inspectTar(zr, format)
}

func inspectTar(r io.Reader, format Format) (*Summary, error) {
	s := &Summary{Format: format}
	seen := make(map[string]struct{})
	tr := tar.NewReader(r)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read entry %d: %w", len(s.Entries)+1, err)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", hdr.Name, err)
		}

		s.Entries = append(s.Entries, Entry{Name: hdr.Name, Declared: hdr.Size, Actual: int64(len(data))})
		s.Records++

		if _, dup := seen[hdr.Name]; dup {
			s.DuplicateNames++
		}
		seen[hdr.Name] = struct{}{}

		if int64(len(data)) != hdr.Size {
			s.problemf("entry %s: declared %d bytes, read %d", hdr.Name, hdr.Size, len(data))
		}
		if !entryNamePattern.MatchString(hdr.Name) {
			s.problemf("entry %s: name does not match <user_id>_<ts>.json", hdr.Name)
		}

		rec, err := record.Decode(data)
		if err != nil {
			s.problemf("entry %s: %v", hdr.Name, err)
			continue
		}
		if err := rec.Validate(); err != nil {
			s.problemf("entry %s: %v", hdr.Name, err)
		}
		if rec.EntryName() != hdr.Name {
			s.problemf("entry %s: content belongs to %s", hdr.Name, rec.EntryName())
		}
	}

	return s, nil
}

func inspectLines(r io.Reader) (*Summary, error) {
	s := &Summary{Format: FormatLines}
	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			s.problemf("line %d: empty", line)
			continue
		}

		s.Records++

		rec, err := record.Decode(text)
		if err != nil {
			s.problemf("line %d: %v", line, err)
			continue
		}
		if err := rec.Validate(); err != nil {
			s.problemf("line %d: %v", line, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return s, nil
}
