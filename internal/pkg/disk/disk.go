// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package disk writes encoded partition tables to block devices and image files.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/siderolabs/diskforge/pkg/partitioning"
)

// WriteRegions writes every region at its offset.
//
// Regions are checked not to extend past size bytes.
func WriteRegions(w io.WriterAt, size uint64, regions []partitioning.Region) error {
	sorted := slices.Clone(regions)

	slices.SortFunc(sorted, func(a, b partitioning.Region) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		default:
			return 0
		}
	})

	for i, region := range sorted {
		if region.End() > size {
			return fmt.Errorf("region %s ends past the end of the disk (%d bytes)", region, size)
		}

		if i > 0 && sorted[i-1].End() > region.Offset {
			return fmt.Errorf("region %s overlaps %s", region, sorted[i-1])
		}

		n, err := w.WriteAt(region.Data, int64(region.Offset))
		if err != nil {
			return fmt.Errorf("error writing %s: %w", region, err)
		}

		if n != len(region.Data) {
			return fmt.Errorf("error writing %s: %w", region, io.ErrShortWrite)
		}
	}

	return nil
}

// Size returns the size of the image file or the block device in bytes.
func Size(f *os.File) (uint64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}

	if st.Mode().IsRegular() {
		return uint64(st.Size()), nil
	}

	if st.Mode()&os.ModeDevice == 0 {
		return 0, fmt.Errorf("%s is neither a block device nor a regular file", f.Name())
	}

	var devsize uint64

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&devsize))); errno != 0 {
		return 0, fmt.Errorf("error getting size of %s: %w", f.Name(), errno)
	}

	return devsize, nil
}

// SectorSize returns the logical sector size of the block device.
//
// Image files report zero: the configured sector size applies.
func SectorSize(f *os.File) (uint64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}

	if st.Mode().IsRegular() {
		return 0, nil
	}

	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err != nil {
		return 0, fmt.Errorf("error getting sector size of %s: %w", f.Name(), err)
	}

	if size <= 0 {
		return 0, errors.New("invalid sector size")
	}

	return uint64(size), nil
}
