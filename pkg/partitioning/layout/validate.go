// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package layout

import (
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/siderolabs/diskforge/pkg/partitioning"
)

// MaxMBRPartitions is the number of primary entries in the MBR.
const MaxMBRPartitions = 4

// Validate checks the structural constraints of the table.
//
// Validate returns all the problems found at once, and a list of warnings which don't prevent
// the table from being encoded.
//
//nolint:gocyclo
func (t *Table) Validate() ([]string, error) {
	var (
		warnings []string
		result   *multierror.Error
	)

	switch t.Type {
	case GPT:
		if t.DiskGUID == uuid.Nil {
			result = multierror.Append(result, partitioning.Invalid(partitioning.NoIndex, "disk GUID", "must be set"))
		}
	case MBR:
		if len(t.Partitions) > MaxMBRPartitions {
			result = multierror.Append(result, partitioning.Errorf(partitioning.ErrTooManyEntries, partitioning.NoIndex, "partitions",
				"%d partitions, MBR holds at most %d", len(t.Partitions), MaxMBRPartitions))
		}
	default:
		result = multierror.Append(result, partitioning.Invalid(partitioning.NoIndex, "type", "unsupported table type %s", t.Type))
	}

	guids := map[uuid.UUID]int{}
	mountPoints := map[string]int{}
	active := 0

	for i, p := range t.Partitions {
		if p == nil {
			result = multierror.Append(result, partitioning.Invalid(i, "", "partition is not set"))

			continue
		}

		if p.TableType() != t.Type {
			result = multierror.Append(result, partitioning.Invalid(i, "type", "%s partition in a %s table", p.TableType(), t.Type))

			continue
		}

		placement := p.Placement()

		if placement.SizeBytes != nil && *placement.SizeBytes == 0 {
			result = multierror.Append(result, partitioning.Invalid(i, "size", "should be greater than zero"))
		}

		if placement.MountPoint != "" {
			if !path.IsAbs(placement.MountPoint) {
				result = multierror.Append(result, partitioning.Invalid(i, "mount point", "%q is not an absolute path", placement.MountPoint))
			}

			if other, ok := mountPoints[path.Clean(placement.MountPoint)]; ok {
				result = multierror.Append(result, partitioning.Invalid(i, "mount point", "%q is already used by partition %d", placement.MountPoint, other))
			}

			mountPoints[path.Clean(placement.MountPoint)] = i

			switch placement.Filesystem.Kind { //nolint:exhaustive
			case FilesystemSwap, FilesystemRaw, FilesystemLVM:
				warnings = append(warnings, fmt.Sprintf("partition %d: mount point %q is ignored for %s", i, placement.MountPoint, placement.Filesystem.Kind))
			}
		}

		if err := placement.Filesystem.validate(i, "filesystem"); err != nil {
			result = multierror.Append(result, err)
		}

		if placement.Filesystem.Kind == FilesystemRaw && placement.Filesystem.Raw != nil && placement.SizeBytes != nil &&
			*placement.SizeBytes < placement.Filesystem.Raw.ContentSize {
			result = multierror.Append(result, partitioning.Invalid(i, "size", "%d bytes can't hold %d bytes of content", *placement.SizeBytes, placement.Filesystem.Raw.ContentSize))
		}

		if placement.Bootable {
			active++
		}

		switch p := p.(type) {
		case *GPTPartition:
			if p.GUID == uuid.Nil {
				result = multierror.Append(result, partitioning.Invalid(i, "uuid", "must be set"))
			} else if other, ok := guids[p.GUID]; ok {
				result = multierror.Append(result, partitioning.Invalid(i, "uuid", "%s is already used by partition %d", p.GUID, other))
			} else {
				guids[p.GUID] = i
			}

			if p.GUID == t.DiskGUID && p.GUID != uuid.Nil {
				result = multierror.Append(result, partitioning.Invalid(i, "uuid", "%s is the disk GUID", p.GUID))
			}

			for _, bit := range p.Attributes {
				if bit > 63 {
					result = multierror.Append(result, partitioning.Invalid(i, "attributes", "bit %d is out of range 0-63", bit))
				}
			}
		case *MBRPartition:
			if p.TypeCode == 0 {
				result = multierror.Append(result, partitioning.Invalid(i, "type", "MBR partition type code must be set"))
			}
		}
	}

	if t.Type == MBR && active > 1 {
		warnings = append(warnings, fmt.Sprintf("%d partitions are marked bootable, firmware usually boots the first one", active))
	}

	return warnings, result.ErrorOrNil()
}

func (fs Filesystem) validate(index int, field string) error {
	if _, err := ParseFilesystemKind(string(fs.Kind)); err != nil {
		return partitioning.Invalid(index, field, "%s", err)
	}

	if fs.variants() > 1 {
		return partitioning.Invalid(index, field, "filesystem variants are mutually exclusive")
	}

	mismatch := func(set bool, kind FilesystemKind) bool {
		return set && fs.Kind != kind
	}

	if mismatch(fs.FAT != nil, FilesystemFAT) || mismatch(fs.Ext4 != nil, FilesystemExt4) ||
		mismatch(fs.Raw != nil, FilesystemRaw) || mismatch(fs.LVM != nil, FilesystemLVM) {
		return partitioning.Invalid(index, field, "options don't match filesystem type %s", fs.Kind)
	}

	switch fs.Kind {
	case FilesystemFAT:
		if fs.FAT != nil {
			if fs.FAT.Heads != nil && *fs.FAT.Heads == 0 {
				return partitioning.Invalid(index, field+".heads", "should be in range 1-255")
			}

			if fs.FAT.SectorsPerTrack != nil && (*fs.FAT.SectorsPerTrack == 0 || *fs.FAT.SectorsPerTrack > 63) {
				return partitioning.Invalid(index, field+".sectors-per-track", "should be in range 1-63")
			}
		}
	case FilesystemRaw:
		if fs.Raw == nil || (fs.Raw.ContentPath == "" && fs.Raw.ContentSize == 0) {
			return partitioning.Invalid(index, field+".content", "raw filesystem requires content")
		}
	case FilesystemLVM:
		if fs.LVM == nil {
			return nil
		}

		var result *multierror.Error

		names := map[string]struct{}{}
		unsized := 0

		for j, vol := range fs.LVM.Volumes {
			volField := fmt.Sprintf("%s.volumes[%d]", field, j)

			if vol.Filesystem.Kind == FilesystemLVM {
				result = multierror.Append(result, partitioning.Invalid(index, volField, "LVM volumes can't be nested"))

				continue
			}

			if err := vol.Filesystem.validate(index, volField+".filesystem"); err != nil {
				result = multierror.Append(result, err)
			}

			if vol.Name != "" {
				if _, ok := names[vol.Name]; ok {
					result = multierror.Append(result, partitioning.Invalid(index, volField+".name", "%q is used more than once", vol.Name))
				}

				names[vol.Name] = struct{}{}
			}

			if vol.Size == nil {
				unsized++
			} else if *vol.Size == 0 {
				result = multierror.Append(result, partitioning.Invalid(index, volField+".size", "should be greater than zero"))
			}
		}

		if unsized > 1 {
			result = multierror.Append(result, partitioning.Invalid(index, field+".volumes", "only one volume may omit the size"))
		}

		return result.ErrorOrNil()
	case FilesystemExt4, FilesystemXFS, FilesystemSwap:
	}

	return nil
}
