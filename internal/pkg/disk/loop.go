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

	"github.com/freddierice/go-losetup/v2"
	"github.com/siderolabs/go-retry/retry"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Loop is an image file attached to a loop device with partition scanning enabled.
type Loop struct {
	dev    losetup.Device
	logger *zap.Logger
}

// AttachLoop attaches the image to a free loop device.
//
// Concurrent attaches might race for the same free device, EBUSY is retried.
func AttachLoop(ctx context.Context, logger *zap.Logger, image string) (*Loop, error) {
	var dev losetup.Device

	err := retry.Exponential(
		30*time.Second,
		retry.WithUnits(100*time.Millisecond),
		retry.WithJitter(50*time.Millisecond),
	).RetryWithContext(ctx, func(context.Context) error {
		var err error

		dev, err = losetup.Attach(image, 0, false)
		if err != nil {
			if errors.Is(err, unix.EBUSY) {
				return retry.ExpectedError(err)
			}

			return err
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach %s to a loop device: %w", image, err)
	}

	l := &Loop{
		dev:    dev,
		logger: logger.With(zap.String("loop", dev.Path())),
	}

	if err = l.enablePartScan(); err != nil {
		l.Detach() //nolint:errcheck

		return nil, err
	}

	l.logger.Info("attached image", zap.String("image", image))

	return l, nil
}

// Path returns the loop device path.
func (l *Loop) Path() string {
	return l.dev.Path()
}

// Detach detaches the loop device.
func (l *Loop) Detach() error {
	l.logger.Info("detaching loop device")

	return l.dev.Detach()
}

func (l *Loop) enablePartScan() error {
	f, err := os.OpenFile(l.dev.Path(), os.O_RDWR, 0)
	if err != nil {
		return err
	}

	defer f.Close() //nolint:errcheck

	status, err := unix.IoctlLoopGetStatus64(int(f.Fd()))
	if err != nil {
		return fmt.Errorf("error getting loop device status: %w", err)
	}

	if status.Flags&unix.LO_FLAGS_PARTSCAN != 0 {
		return nil
	}

	status.Flags |= unix.LO_FLAGS_PARTSCAN

	if err = unix.IoctlLoopSetStatus64(int(f.Fd()), status); err != nil {
		return fmt.Errorf("error enabling partition scan: %w", err)
	}

	return nil
}
