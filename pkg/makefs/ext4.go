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
	// FilesystemTypeEXT4 is the filesystem type for EXT4.
	FilesystemTypeEXT4 = "ext4"

	// MaxExt4LabelLength is the length of the ext4 volume name field.
	MaxExt4LabelLength = 16
)

// Ext4 creates a ext4 filesystem on the specified partition.
func Ext4(ctx context.Context, partname string, setters ...Option) error {
	opts := NewDefaultOptions(setters...)

	args, err := ext4Args(partname, opts)
	if err != nil {
		return err
	}

	opts.Printf("creating ext4 filesystem on %s with args: %v", partname, args)

	_, err = cmd.RunContext(ctx, "mkfs.ext4", args...)

	return err
}

func ext4Args(partname string, opts Options) ([]string, error) {
	if partname == "" {
		return nil, errors.New("missing path to disk")
	}

	if len(opts.Label) > MaxExt4LabelLength {
		return nil, fmt.Errorf("ext4 label %q is longer than %d characters", opts.Label, MaxExt4LabelLength)
	}

	var args []string

	if opts.UUID != nil {
		args = append(args, "-U", opts.UUID.String())
	}

	if opts.Label != "" {
		args = append(args, "-L", opts.Label)
	}

	if opts.Force {
		args = append(args, "-F")
	}

	return append(args, partname), nil
}
