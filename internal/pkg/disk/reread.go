// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package disk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/siderolabs/go-retry/retry"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// RereadPartitionTable flushes the buffers and invokes the BLKRRPART ioctl to have the kernel
// read the partition table.
//
// The kernel returns EBUSY while partitions of the device are in use, the call is retried until timeout.
func RereadPartitionTable(ctx context.Context, logger *zap.Logger, f *os.File, timeout time.Duration) error {
	if err := f.Sync(); err != nil {
		return err
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKFLSBUF, 0); errno != 0 {
		return fmt.Errorf("flush block device buffers: %w", errno)
	}

	return retry.Constant(timeout, retry.WithUnits(500*time.Millisecond)).RetryWithContext(ctx, func(context.Context) error {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKRRPART, 0)

		switch {
		case errno == 0:
			return nil
		case errors.Is(errno, unix.EBUSY):
			logger.Debug("device is busy, retrying partition table re-read")

			return retry.ExpectedError(fmt.Errorf("re-read partition table: %w", errno))
		default:
			return fmt.Errorf("re-read partition table: %w", errno)
		}
	})
}
