package writer

import (
	"context"
	"fmt"

	"pkg.jsn.cam/testdatagen/internal/record"
)

var newline = []byte("\n")

// WriteBlob writes count records as newline-delimited JSON into a new object.
func (w *Writer) WriteBlob(ctx context.Context, count int) (Result, error) {
	out, err := w.create(ctx)
	if err != nil {
		return Result{}, err
	}

	for i := 0; i < count; i++ {
		data, err := record.Encode(w.gen.Next())
		if err != nil {
			return Result{}, w.fail(ctx, out, fmt.Errorf("%w: %s: %w", ErrEncode, out.name, err))
		}

		if _, err := out.buf.Write(data); err != nil {
			return Result{}, w.fail(ctx, out, fmt.Errorf("%w: %s: %w", ErrWrite, out.name, err))
		}
		if _, err := out.buf.Write(newline); err != nil {
			return Result{}, w.fail(ctx, out, fmt.Errorf("%w: %s: %w", ErrWrite, out.name, err))
		}
	}

	res, err := out.finish(count)
	if err != nil {
		return Result{}, w.fail(ctx, out, err)
	}

	return res, nil
}
