// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package disk

import (
	"context"
	"fmt"
	"time"

	"github.com/siderolabs/go-blockdevice/v2/blkid"
	"github.com/siderolabs/go-blockdevice/v2/block"
	"go.uber.org/zap"

	"github.com/siderolabs/diskforge/pkg/partitioning"
)

// Device is a block device opened for writing and locked exclusively.
type Device struct {
	bd     *block.Device
	logger *zap.Logger

	path       string
	size       uint64
	sectorSize uint64
}

// Open opens and locks the block device (or image file).
func Open(ctx context.Context, logger *zap.Logger, path string, lockTimeout time.Duration) (*Device, error) {
	bd, err := block.NewFromPath(path, block.OpenForWrite())
	if err != nil {
		return nil, fmt.Errorf("failed to open blockdevice %s: %w", path, err)
	}

	if err = bd.RetryLockWithTimeout(ctx, true, lockTimeout); err != nil {
		bd.Close() //nolint:errcheck

		return nil, fmt.Errorf("failed to lock blockdevice %s: %w", path, err)
	}

	d := &Device{
		bd:     bd,
		logger: logger.With(zap.String("device", path)),
		path:   path,
	}

	if d.size, err = Size(bd.File()); err != nil {
		d.Close() //nolint:errcheck

		return nil, err
	}

	if d.sectorSize, err = SectorSize(bd.File()); err != nil {
		d.Close() //nolint:errcheck

		return nil, err
	}

	return d, nil
}

// Path returns the device path.
func (d *Device) Path() string {
	return d.path
}

// Size returns the device size in bytes.
func (d *Device) Size() uint64 {
	return d.size
}

// SectorSize returns the logical sector size, zero for image files.
func (d *Device) SectorSize() uint64 {
	return d.sectorSize
}

// IsBlockDevice returns true if the device is not an image file.
func (d *Device) IsBlockDevice() bool {
	return d.sectorSize != 0
}

// Probe probes the current contents of the device.
func (d *Device) Probe() (*blkid.Info, error) {
	info, err := blkid.Probe(d.bd.File(), blkid.WithSkipLocking(true), blkid.WithProbeLogger(d.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to probe blockdevice %s: %w", d.path, err)
	}

	return info, nil
}

// Wipe zeroes the beginning and the end of the device.
func (d *Device) Wipe() error {
	if !d.IsBlockDevice() {
		return nil
	}

	d.logger.Info("wiping device")

	if err := d.bd.FastWipe(); err != nil {
		return fmt.Errorf("failed to wipe blockdevice %s: %w", d.path, err)
	}

	return nil
}

// Write writes the regions and syncs the device.
func (d *Device) Write(regions []partitioning.Region) error {
	for _, region := range regions {
		d.logger.Debug("writing region", zap.Stringer("region", region))
	}

	if err := WriteRegions(d.bd.File(), d.size, regions); err != nil {
		return err
	}

	return d.bd.File().Sync()
}

// RereadPartitionTable makes the kernel pick up the new partition table.
//
// It is a no-op for image files.
func (d *Device) RereadPartitionTable(ctx context.Context, timeout time.Duration) error {
	if !d.IsBlockDevice() {
		return nil
	}

	return RereadPartitionTable(ctx, d.logger, d.bd.File(), timeout)
}

// Close unlocks and closes the device.
func (d *Device) Close() error {
	d.bd.Unlock() //nolint:errcheck

	return d.bd.Close()
}
