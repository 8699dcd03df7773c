// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package disk

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/siderolabs/diskforge/pkg/partitioning"
)

// CreateImage creates a sparse raw disk image of the given size.
//
// An existing file is truncated.
func CreateImage(printf func(string, ...any), path string, size uint64) error {
	printf("creating raw disk image %s of size %s", path, humanize.IBytes(size))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image %s: %w", path, err)
	}

	defer f.Close() //nolint:errcheck

	if err = f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("failed to allocate image %s: %w", path, err)
	}

	return f.Close()
}

// WriteImage writes the regions to an existing image file and syncs it.
func WriteImage(path string, regions []partitioning.Region) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}

	defer f.Close() //nolint:errcheck

	size, err := Size(f)
	if err != nil {
		return err
	}

	if err = WriteRegions(f, size, regions); err != nil {
		return err
	}

	if err = f.Sync(); err != nil {
		return err
	}

	return f.Close()
}
