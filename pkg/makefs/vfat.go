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
	// FilesystemTypeVFAT is the filesystem type for VFAT.
	FilesystemTypeVFAT = "vfat"

	// MaxVFATLabelLength is the length of the FAT volume label field.
	MaxVFATLabelLength = 11
)

// VFAT creates a FAT32 filesystem on the specified partition.
func VFAT(ctx context.Context, partname string, setters ...Option) error {
	opts := NewDefaultOptions(setters...)

	args, err := vfatArgs(partname, opts)
	if err != nil {
		return err
	}

	opts.Printf("creating vfat filesystem on %s with args: %v", partname, args)

	_, err = cmd.RunContext(ctx, "mkfs.vfat", args...)

	return err
}

func vfatArgs(partname string, opts Options) ([]string, error) {
	if partname == "" {
		return nil, errors.New("missing path to disk")
	}

	if len(opts.Label) > MaxVFATLabelLength {
		return nil, fmt.Errorf("vfat label %q is longer than %d characters", opts.Label, MaxVFATLabelLength)
	}

	args := []string{"-F", "32"}

	if opts.Heads != 0 && opts.SectorsPerTrack != 0 {
		args = append(args, "-g", fmt.Sprintf("%d/%d", opts.Heads, opts.SectorsPerTrack))
	}

	if opts.VolumeID != nil {
		args = append(args, "-i", fmt.Sprintf("%08x", *opts.VolumeID))
	}

	if opts.Label != "" {
		args = append(args, "-n", opts.Label)
	}

	return append(args, partname), nil
}
