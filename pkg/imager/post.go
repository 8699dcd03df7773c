// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imager

import (
	"context"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/siderolabs/go-cmd/pkg/cmd"
)

func postProcessZstd(ctx context.Context, filename string, printf func(string, ...any)) error {
	in, err := os.Open(filename)
	if err != nil {
		return err
	}

	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(filename+OutFormatZSTD.Extension(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	defer out.Close() //nolint:errcheck

	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	written, err := io.Copy(zw, &contextReader{ctx: ctx, r: in})
	if err != nil {
		zw.Close() //nolint:errcheck

		return err
	}

	if err = zw.Close(); err != nil {
		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	printf("compressed %s of %s with zstd", humanize.IBytes(uint64(written)), filename)

	return os.Remove(filename)
}

func postProcessGz(ctx context.Context, filename string) error {
	if _, err := cmd.RunContext(ctx, "pigz", "-6", filename); err != nil {
		return err
	}

	return nil
}

func postProcessXz(ctx context.Context, filename string) error {
	if _, err := cmd.RunContext(ctx, "xz", "-0", "-T", "0", filename); err != nil {
		return err
	}

	return nil
}

type contextReader struct {
	ctx context.Context //nolint:containedctx
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	return r.r.Read(p)
}
