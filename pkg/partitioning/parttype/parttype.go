// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package parttype maps filesystem kinds to partition type identifiers.
//
// Changing the mapping changes the partition types of the generated tables.
package parttype

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/siderolabs/diskforge/pkg/partitioning"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
)

// GPT partition type GUIDs.
var (
	MicrosoftBasicData = uuid.MustParse("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7")
	LinuxFilesystem    = uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
	LinuxSwap          = uuid.MustParse("0657FD6D-A4AB-43C4-84E5-0933C84B4F4F")
	LinuxLVM           = uuid.MustParse("E6D6D379-F507-44C2-A23C-238F2A3DF928")
	EFISystem          = uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
)

// MBR partition type codes.
const (
	MBRFAT32LBA      uint8 = 0x0C
	MBRLinux         uint8 = 0x83
	MBRLinuxSwap     uint8 = 0x82
	MBRLinuxLVM      uint8 = 0x8E
	MBRGPTProtective uint8 = 0xEE
)

// Identifier is a partition type in one of the table formats.
type Identifier struct {
	GUID  uuid.UUID
	Table layout.TableType
	Code  uint8
}

// String implements fmt.Stringer.
func (id Identifier) String() string {
	if id.Table == layout.MBR {
		return fmt.Sprintf("0x%02x", id.Code)
	}

	return id.GUID.String()
}

// Map returns the type identifier of the filesystem in the table format.
func Map(fs layout.Filesystem, table layout.TableType) (Identifier, error) {
	switch table {
	case layout.GPT:
		guid, err := GPT(fs.Kind)

		return Identifier{Table: table, GUID: guid}, err
	case layout.MBR:
		code, err := MBR(fs.Kind)

		return Identifier{Table: table, Code: code}, err
	default:
		return Identifier{}, fmt.Errorf("%w: table type %s", partitioning.ErrUnsupportedCombination, table)
	}
}

// GPT returns the partition type GUID for the filesystem kind.
func GPT(kind layout.FilesystemKind) (uuid.UUID, error) {
	switch kind {
	case layout.FilesystemFAT:
		return MicrosoftBasicData, nil
	case layout.FilesystemExt4, layout.FilesystemXFS, layout.FilesystemRaw:
		return LinuxFilesystem, nil
	case layout.FilesystemSwap:
		return LinuxSwap, nil
	case layout.FilesystemLVM:
		return LinuxLVM, nil
	}

	return uuid.Nil, fmt.Errorf("%w: no GPT partition type for filesystem %q", partitioning.ErrUnsupportedCombination, kind)
}

// MBR returns the partition type code for the filesystem kind.
func MBR(kind layout.FilesystemKind) (uint8, error) {
	switch kind {
	case layout.FilesystemFAT:
		return MBRFAT32LBA, nil
	case layout.FilesystemExt4, layout.FilesystemXFS, layout.FilesystemRaw:
		return MBRLinux, nil
	case layout.FilesystemSwap:
		return MBRLinuxSwap, nil
	case layout.FilesystemLVM:
		return MBRLinuxLVM, nil
	}

	return 0, fmt.Errorf("%w: no MBR partition type for filesystem %q", partitioning.ErrUnsupportedCombination, kind)
}

// Name returns a human readable name of the GPT partition type.
func Name(guid uuid.UUID) string {
	switch guid {
	case MicrosoftBasicData:
		return "Microsoft basic data"
	case LinuxFilesystem:
		return "Linux filesystem"
	case LinuxSwap:
		return "Linux swap"
	case LinuxLVM:
		return "Linux LVM"
	case EFISystem:
		return "EFI System"
	default:
		return guid.String()
	}
}
