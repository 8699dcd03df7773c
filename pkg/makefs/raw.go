// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package makefs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
)

// Raw copies the content file into the specified partition.
//
// Content larger than limit bytes is rejected, limit 0 means no limit.
func Raw(ctx context.Context, partname, contentPath string, limit uint64, setters ...Option) error {
	if partname == "" {
		return errors.New("missing path to disk")
	}

	opts := NewDefaultOptions(setters...)

	src, err := os.Open(contentPath)
	if err != nil {
		return err
	}

	defer src.Close() //nolint:errcheck

	st, err := src.Stat()
	if err != nil {
		return err
	}

	if limit > 0 && uint64(st.Size()) > limit {
		return fmt.Errorf("content %q (%s) doesn't fit into %s", contentPath, humanize.IBytes(uint64(st.Size())), humanize.IBytes(limit))
	}

	dst, err := os.OpenFile(partname, os.O_WRONLY, 0)
	if err != nil {
		return err
	}

	defer dst.Close() //nolint:errcheck

	opts.Printf("copying %s (%s) to %s", contentPath, humanize.IBytes(uint64(st.Size())), partname)

	if _, err = io.Copy(dst, &contextReader{ctx: ctx, r: src}); err != nil {
		return fmt.Errorf("error copying %q: %w", contentPath, err)
	}

	if err = dst.Sync(); err != nil {
		return err
	}

	return dst.Close()
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
