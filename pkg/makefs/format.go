// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package makefs

import (
	"context"
	"fmt"

	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
)

// FilesystemOptions returns the makefs options carried by the filesystem hints.
func FilesystemOptions(fs layout.Filesystem) []Option {
	var opts []Option

	switch fs.Kind { //nolint:exhaustive
	case layout.FilesystemFAT:
		if fs.FAT == nil {
			break
		}

		if fs.FAT.HasGeometry() {
			opts = append(opts, WithGeometry(*fs.FAT.Heads, *fs.FAT.SectorsPerTrack))
		}

		if fs.FAT.VolumeID != nil {
			opts = append(opts, WithVolumeID(*fs.FAT.VolumeID))
		}
	case layout.FilesystemExt4:
		if fs.Ext4 != nil && fs.Ext4.UUID != nil {
			opts = append(opts, WithUUID(*fs.Ext4.UUID))
		}
	}

	return opts
}

// MaxLabelLength returns the longest label the filesystem accepts, 0 if it has no label.
func MaxLabelLength(kind layout.FilesystemKind) int {
	switch kind { //nolint:exhaustive
	case layout.FilesystemFAT:
		return MaxVFATLabelLength
	case layout.FilesystemExt4:
		return MaxExt4LabelLength
	case layout.FilesystemXFS:
		return MaxXFSLabelLength
	case layout.FilesystemSwap:
		return 16
	default:
		return 0
	}
}

// Format establishes the filesystem on a partition of the given size in bytes.
//
// LVM physical volumes are not handled here, see LVM.
func Format(ctx context.Context, partname string, fs layout.Filesystem, size uint64, setters ...Option) error {
	setters = append(FilesystemOptions(fs), setters...)

	var err error

	switch fs.Kind { //nolint:exhaustive
	case layout.FilesystemFAT:
		err = VFAT(ctx, partname, setters...)
	case layout.FilesystemExt4:
		err = Ext4(ctx, partname, setters...)
	case layout.FilesystemXFS:
		// xfs doesn't support by default filesystems < 300 MiB
		if size > 0 && size <= MinXFSSize {
			setters = append(setters, WithUnsupportedFSOption(true))
		}

		err = XFS(ctx, partname, setters...)
	case layout.FilesystemSwap:
		err = Swap(partname, setters...)
	case layout.FilesystemRaw:
		if fs.Raw == nil || fs.Raw.ContentPath == "" {
			return nil
		}

		err = Raw(ctx, partname, fs.Raw.ContentPath, size, setters...)
	default:
		return fmt.Errorf("unsupported filesystem type: %s", fs.Kind)
	}

	if err != nil {
		return fmt.Errorf("error formatting %s: %w", fs.Kind, err)
	}

	return nil
}
