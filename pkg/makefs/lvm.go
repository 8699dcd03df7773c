// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package makefs

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/siderolabs/go-cmd/pkg/cmd"

	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
)

// LogicalVolume is a logical volume created by LVM.
type LogicalVolume struct {
	Path   string
	Volume layout.LVMVolume
}

// LVM creates a physical volume on the partition, a volume group on top of it and the logical volumes.
//
// Volumes with a size are created first, the volume without a size takes the remaining extents.
func LVM(ctx context.Context, partname, vgName string, volumes []layout.LVMVolume, setters ...Option) ([]LogicalVolume, error) {
	if partname == "" {
		return nil, errors.New("missing path to disk")
	}

	if vgName == "" {
		return nil, errors.New("missing volume group name")
	}

	opts := NewDefaultOptions(setters...)

	for _, args := range [][]string{
		{"pvcreate", "--yes", partname},
		{"vgcreate", "--yes", vgName, partname},
	} {
		opts.Printf("running lvm %v", args)

		if _, err := cmd.RunContext(ctx, "lvm", args...); err != nil {
			return nil, fmt.Errorf("error running lvm %s: %w", args[0], err)
		}
	}

	result := make([]LogicalVolume, 0, len(volumes))

	for _, lv := range orderVolumes(vgName, volumes) {
		args := lvcreateArgs(vgName, lv)

		opts.Printf("running lvm %v", args)

		if _, err := cmd.RunContext(ctx, "lvm", args...); err != nil {
			return nil, fmt.Errorf("error creating logical volume %q: %w", lv.Volume.Name, err)
		}

		result = append(result, lv)
	}

	return result, nil
}

// orderVolumes assigns names and device paths, and moves the size-less volume last.
func orderVolumes(vgName string, volumes []layout.LVMVolume) []LogicalVolume {
	ordered := make([]LogicalVolume, 0, len(volumes))

	for i, vol := range volumes {
		if vol.Name == "" {
			vol.Name = fmt.Sprintf("lv%d", i)
		}

		ordered = append(ordered, LogicalVolume{Path: DevicePath(vgName, vol.Name), Volume: vol})
	}

	slices.SortStableFunc(ordered, func(a, b LogicalVolume) int {
		return cmp.Compare(sizeless(a.Volume), sizeless(b.Volume))
	})

	return ordered
}

func sizeless(vol layout.LVMVolume) int {
	if vol.Size == nil {
		return 1
	}

	return 0
}

func lvcreateArgs(vgName string, lv LogicalVolume) []string {
	args := []string{"lvcreate", "--yes", "--name", lv.Volume.Name}

	if lv.Volume.Size != nil {
		args = append(args, "--size", fmt.Sprintf("%db", *lv.Volume.Size))
	} else {
		args = append(args, "--extents", "100%FREE")
	}

	return append(args, vgName)
}

// DevicePath returns the device mapper path of the logical volume.
func DevicePath(vgName, lvName string) string {
	return filepath.Join("/dev", vgName, lvName)
}
