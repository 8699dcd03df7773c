// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package makefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/siderolabs/go-cmd/pkg/cmd"
)

const (
	// FilesystemTypeXFS is the filesystem type for XFS.
	FilesystemTypeXFS = "xfs"

	// MaxXFSLabelLength is the length of the XFS label field.
	MaxXFSLabelLength = 12

	// MinXFSSize is the smallest filesystem mkfs.xfs creates without --unsupported.
	MinXFSSize = 300 * 1024 * 1024
)

// XFS creates a XFS filesystem on the specified partition.
func XFS(ctx context.Context, partname string, setters ...Option) error {
	opts := NewDefaultOptions(setters...)

	args, err := xfsArgs(partname, opts)
	if err != nil {
		return err
	}

	opts.Printf("creating xfs filesystem on %s with args: %v", partname, args)

	_, err = cmd.RunContext(ctx, "mkfs.xfs", args...)

	return err
}

func xfsArgs(partname string, opts Options) ([]string, error) {
	if partname == "" {
		return nil, errors.New("missing path to disk")
	}

	if len(opts.Label) > MaxXFSLabelLength {
		return nil, fmt.Errorf("xfs label %q is longer than %d characters", opts.Label, MaxXFSLabelLength)
	}

	// The bigtime=1 metadata option enables timestamps beyond 2038.
	args := []string{"-n", "ftype=1", "-m", "bigtime=1"}

	if opts.Force {
		args = append(args, "-f")
	}

	if opts.Label != "" {
		args = append(args, "-L", opts.Label)
	}

	if opts.UnsupportedFSOption {
		args = append(args, "--unsupported")
	}

	return append(args, partname), nil
}
