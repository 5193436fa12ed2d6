package writer

import (
	"archive/tar"
	"context"
	"fmt"

	"pkg.jsn.cam/testdatagen/internal/compress"
	"pkg.jsn.cam/testdatagen/internal/record"
)

// maxEntryName is the width of the ustar name field.
const maxEntryName = 100

// WriteArchive writes count records as tar entries, one per record, into a
// new compressed object.
func (w *Writer) WriteArchive(ctx context.Context, count int) (Result, error) {
	out, err := w.create(ctx)
	if err != nil {
		return Result{}, err
	}

	zw, err := compress.Wrap(out.buf, w.opts.Codec, w.opts.Level)
	if err != nil {
		return Result{}, w.fail(ctx, out, fmt.Errorf("%w: %s: %w", ErrWrite, out.name, err))
	}

	tw := tar.NewWriter(zw)

	for i := 0; i < count; i++ {
		rec := w.gen.Next()

		data, err := record.Encode(rec)
		if err != nil {
			return Result{}, w.fail(ctx, out, fmt.Errorf("%w: %s: %w", ErrEncode, out.name, err))
		}

		if err := appendEntry(tw, rec.EntryName(), data); err != nil {
			return Result{}, w.fail(ctx, out, fmt.Errorf("%s: %w", out.name, err))
		}
	}

	if err := tw.Close(); err != nil {
		return Result{}, w.fail(ctx, out, fmt.Errorf("%w: finish archive %s: %w", ErrWrite, out.name, err))
	}
	if err := zw.Close(); err != nil {
		return Result{}, w.fail(ctx, out, fmt.Errorf("%w: finish %s stream %s: %w", ErrWrite, w.opts.Codec, out.name, err))
	}

	res, err := out.finish(count)
	if err != nil {
		return Result{}, w.fail(ctx, out, err)
	}

	return res, nil
}

// appendEntry writes one ustar header followed by its payload.
// archive/tar fills in the header checksum.
func appendEntry(tw *tar.Writer, name string, data []byte) error {
	if len(name) > maxEntryName {
		return fmt.Errorf("%w: %q is %d bytes", ErrEntryNameTooLong, name, len(name))
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     int64(len(data)),
		Mode:     0644,
		Format:   tar.FormatUSTAR,
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("%w: header %s: %w", ErrWrite, name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("%w: entry %s: %w", ErrWrite, name, err)
	}

	return nil
}
