// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package provision writes a partition layout to a disk and creates the filesystems.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/siderolabs/diskforge/internal/pkg/disk"
	"github.com/siderolabs/diskforge/pkg/logging"
	"github.com/siderolabs/diskforge/pkg/makefs"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
	"github.com/siderolabs/diskforge/pkg/partitioning/resolve"
	"github.com/siderolabs/diskforge/pkg/partitioning/table"
)

// Request describes the provisioning target.
//
// Exactly one of Disk and Image should be set.
type Request struct {
	Table *layout.Table

	// Disk is the path to a block device.
	Disk string
	// Image is the path to a raw image file, attached to a loop device to format the partitions.
	Image string
	// ImageSize creates (or truncates) the image if not zero.
	ImageSize uint64
}

// Partition is a provisioned partition.
type Partition struct {
	Path       string
	MountPoint string
	Filesystem layout.FilesystemKind
	Volumes    []makefs.LogicalVolume
	Index      int
}

// Result of provisioning.
type Result struct {
	Layout     *resolve.Layout
	Warnings   []string
	Partitions []Partition
}

// Provision writes the partition table of the request and formats the partitions.
//
//nolint:gocyclo,cyclop
func Provision(ctx context.Context, req Request, setters ...Option) (*Result, error) {
	opts := DefaultOptions()

	for _, setter := range setters {
		if err := setter(&opts); err != nil {
			return nil, err
		}
	}

	switch {
	case req.Table == nil:
		return nil, errors.New("partition table is required")
	case (req.Disk == "") == (req.Image == ""):
		return nil, errors.New("exactly one of disk and image should be set")
	}

	logger := opts.Logger.With(logging.Component("provision"))
	printf := logging.Printf(logger)

	devPath := req.Disk

	if req.Image != "" {
		if req.ImageSize > 0 {
			if err := disk.CreateImage(printf, req.Image, req.ImageSize); err != nil {
				return nil, err
			}
		}

		devPath = req.Image

		if !opts.SkipFormat {
			loop, err := disk.AttachLoop(ctx, logger, req.Image)
			if err != nil {
				return nil, err
			}

			defer loop.Detach() //nolint:errcheck

			devPath = loop.Path()
		}
	}

	dev, err := disk.Open(ctx, logger, devPath, time.Duration(opts.Config.Device.LockTimeout))
	if err != nil {
		return nil, err
	}

	defer dev.Close() //nolint:errcheck

	info, err := dev.Probe()
	if err != nil {
		return nil, err
	}

	if info.Name != "" {
		if !opts.Force {
			return nil, fmt.Errorf("disk %s is not empty, detected %q", devPath, info.Name)
		}

		if err = dev.Wipe(); err != nil {
			return nil, err
		}
	}

	sectorSize := dev.SectorSize()
	if sectorSize == 0 {
		sectorSize = uint64(opts.Config.Disk.SectorSize)
	}

	result, err := table.Generate(req.Table, dev.Size()/sectorSize, opts.Config.TableOptions(sectorSize)...)
	if err != nil {
		return nil, err
	}

	for _, warning := range result.Warnings {
		logger.Warn(warning)
	}

	if err = dev.Write(result.Regions); err != nil {
		return nil, fmt.Errorf("failed to write partition table: %w", err)
	}

	logger.Info("wrote partition table",
		zap.String("device", devPath),
		zap.Stringer("type", req.Table.Type),
		zap.Int("partitions", len(result.Layout.Partitions)),
	)

	if err = dev.RereadPartitionTable(ctx, time.Duration(opts.Config.Device.RereadTimeout)); err != nil {
		return nil, err
	}

	if err = disk.Verify(logger, devPath, result.Layout); err != nil {
		return nil, fmt.Errorf("failed to verify partition table: %w", err)
	}

	out := &Result{
		Layout:   result.Layout,
		Warnings: result.Warnings,
	}

	if opts.SkipFormat {
		return out, nil
	}

	if !dev.IsBlockDevice() {
		return nil, fmt.Errorf("%s is not a block device, partitions can't be formatted", devPath)
	}

	paths, err := disk.PartitionPaths(devPath, len(result.Layout.Partitions))
	if err != nil {
		return nil, err
	}

	if err = disk.WaitForPaths(ctx, time.Duration(opts.Config.Device.RereadTimeout), paths...); err != nil {
		return nil, fmt.Errorf("partition devices didn't appear: %w", err)
	}

	for i, part := range result.Layout.Partitions {
		provisioned, err := format(ctx, logger, paths[i], part, sectorSize)
		if err != nil {
			return nil, fmt.Errorf("failed to format partition %d (%s): %w", i, paths[i], err)
		}

		out.Partitions = append(out.Partitions, provisioned)
	}

	return out, nil
}

func format(ctx context.Context, logger *zap.Logger, path string, part resolve.Partition, sectorSize uint64) (Partition, error) {
	placement := part.Spec.Placement()
	fs := placement.Filesystem
	size := part.LengthLBA * sectorSize

	logger = logger.With(zap.String("partition", path), zap.Stringer("filesystem", fs))

	provisioned := Partition{
		Index:      part.Index,
		Path:       path,
		MountPoint: placement.MountPoint,
		Filesystem: fs.Kind,
	}

	setters := []makefs.Option{
		makefs.WithForce(true),
		makefs.WithPrintf(logging.Printf(logger)),
	}

	if gptPart, ok := part.Spec.(*layout.GPTPartition); ok && gptPart.Name != "" && len(gptPart.Name) <= makefs.MaxLabelLength(fs.Kind) {
		setters = append(setters, makefs.WithLabel(gptPart.Name))
	}

	logger.Info("formatting partition", zap.String("size", humanize.IBytes(size)))

	if fs.Kind != layout.FilesystemLVM {
		return provisioned, makefs.Format(ctx, path, fs, size, setters...)
	}

	vgName := fmt.Sprintf("diskforge%d", part.Index)

	var volumes []layout.LVMVolume

	if fs.LVM != nil {
		volumes = fs.LVM.Volumes

		if fs.LVM.Name != "" {
			vgName = fs.LVM.Name
		}
	}

	lvs, err := makefs.LVM(ctx, path, vgName, volumes, setters...)
	if err != nil {
		return provisioned, err
	}

	for _, lv := range lvs {
		var lvSize uint64

		if lv.Volume.Size != nil {
			lvSize = *lv.Volume.Size
		}

		if err = makefs.Format(ctx, lv.Path, lv.Volume.Filesystem, lvSize, makefs.WithForce(true), makefs.WithPrintf(logging.Printf(logger))); err != nil {
			return provisioned, fmt.Errorf("volume %s: %w", lv.Volume.Name, err)
		}
	}

	provisioned.Volumes = lvs

	return provisioned, nil
}
