// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package disk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	blkpartitioning "github.com/siderolabs/go-blockdevice/v2/partitioning"
	"github.com/siderolabs/go-retry/retry"
)

// PartitionPath returns the canonical path to the partition number n (1-based) of the disk,
// e.g. /dev/sda1, /dev/nvme0n1p1 or /dev/loop0p1.
func PartitionPath(disk string, n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("invalid partition number %d", n)
	}

	switch {
	case strings.HasPrefix(disk, "/dev/disk/by-id/"), strings.HasPrefix(disk, "/dev/disk/by-path/"):
		name, err := filepath.EvalSymlinks(disk)
		if err != nil {
			return "", err
		}

		disk = name
	case strings.HasPrefix(disk, "/dev/disk/by-label/"),
		strings.HasPrefix(disk, "/dev/disk/by-partlabel/"),
		strings.HasPrefix(disk, "/dev/disk/by-partuuid/"),
		strings.HasPrefix(disk, "/dev/disk/by-uuid/"):
		return "", errors.New("disk name is already a partition")
	}

	return blkpartitioning.DevName(disk, uint(n)), nil
}

// PartitionPaths returns the paths of the first count partitions of the disk.
func PartitionPaths(disk string, count int) ([]string, error) {
	paths := make([]string, 0, count)

	for i := range count {
		path, err := PartitionPath(disk, i+1)
		if err != nil {
			return nil, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}

// WaitForPaths waits for the partition device nodes to appear.
func WaitForPaths(ctx context.Context, timeout time.Duration, paths ...string) error {
	return retry.Constant(timeout, retry.WithUnits(100*time.Millisecond)).RetryWithContext(ctx, func(context.Context) error {
		for _, path := range paths {
			if _, err := os.Stat(path); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return retry.ExpectedError(err)
				}

				return err
			}
		}

		return nil
	})
}
