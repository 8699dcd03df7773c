// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package layout provides the partition table data model and its validation.
package layout

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TableType is the partition table format.
type TableType int

// Partition table formats.
const (
	GPT TableType = iota
	MBR
)

// String implements fmt.Stringer.
func (t TableType) String() string {
	switch t {
	case GPT:
		return "gpt"
	case MBR:
		return "mbr"
	default:
		return fmt.Sprintf("TableType(%d)", int(t))
	}
}

// ParseTableType parses "gpt" or "mbr".
func ParseTableType(s string) (TableType, error) {
	switch strings.ToLower(s) {
	case "gpt":
		return GPT, nil
	case "mbr", "dos", "msdos":
		return MBR, nil
	default:
		return 0, fmt.Errorf("unknown partition table type %q", s)
	}
}

// Table is the root of the partition layout.
type Table struct {
	Partitions []Partition

	// DiskGUID is written into the GPT header.
	DiskGUID uuid.UUID

	Type TableType

	// DiskSignature is written into the MBR (if not zero).
	DiskSignature uint32
}

// Partition is either a *GPTPartition or an *MBRPartition.
type Partition interface {
	TableType() TableType
	Placement() *Placement

	sealed()
}

// Placement is the part of the partition shared by both table types.
type Placement struct {
	// StartLBA is the first sector, placed verbatim if set.
	StartLBA *uint64
	// SizeBytes is rounded up to whole sectors, if not set the resolver fills it.
	SizeBytes *uint64

	// MountPoint is consumed by the mounting collaborator only.
	MountPoint string

	Filesystem Filesystem

	Bootable bool
}

// GPTPartition is a GPT partition entry.
type GPTPartition struct {
	Name string

	// Attributes are bit indices (0-63) set in the entry attribute field.
	Attributes []uint

	Common Placement

	GUID uuid.UUID

	PlatformRequired bool
}

// TableType implements Partition.
func (p *GPTPartition) TableType() TableType { return GPT }

// Placement implements Partition.
func (p *GPTPartition) Placement() *Placement { return &p.Common }

func (p *GPTPartition) sealed() {}

// MBRPartition is a primary MBR partition entry.
type MBRPartition struct {
	Common Placement

	TypeCode uint8
}

// TableType implements Partition.
func (p *MBRPartition) TableType() TableType { return MBR }

// Placement implements Partition.
func (p *MBRPartition) Placement() *Placement { return &p.Common }

func (p *MBRPartition) sealed() {}

// Known GPT attribute bits.
const (
	AttributePlatformRequired = 0
	AttributeEFIIgnore        = 1
	AttributeLegacyBIOSBoot   = 2
	AttributeReadOnly         = 60
	AttributeHidden           = 62
	AttributeNoAutomount      = 63
)

// AttributeMask returns the GPT attribute field of the partition.
func (p *GPTPartition) AttributeMask() uint64 {
	var mask uint64

	if p.PlatformRequired {
		mask |= 1 << AttributePlatformRequired
	}

	for _, bit := range p.Attributes {
		if bit < 64 {
			mask |= 1 << bit
		}
	}

	return mask
}
