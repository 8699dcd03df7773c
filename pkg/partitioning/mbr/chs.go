// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mbr

import (
	"errors"
	"fmt"
)

// Geometry is the CHS geometry used to fill the legacy CHS fields.
type Geometry struct {
	Heads           uint8
	SectorsPerTrack uint8
}

// DefaultGeometry is the geometry used when the partition doesn't carry one.
var DefaultGeometry = Geometry{Heads: 255, SectorsPerTrack: 63}

// MaxCylinder is the last cylinder addressable by the CHS fields.
const MaxCylinder = 1023

// CHS is the packed on-disk CHS address: head, sector with cylinder high bits, cylinder low bits.
type CHS [3]byte

// saturated is (1023, 254, 63).
var saturated = CHS{0xfe, 0xff, 0xff}

// Validate checks the geometry.
func (g Geometry) Validate() error {
	if g.Heads == 0 {
		return errors.New("heads should be in range 1-255")
	}

	if g.SectorsPerTrack == 0 || g.SectorsPerTrack > 63 {
		return fmt.Errorf("sectors per track should be in range 1-63, got %d", g.SectorsPerTrack)
	}

	return nil
}

// CHS converts the LBA into the CHS address.
//
// Addresses beyond cylinder 1023 saturate to (1023, 254, 63).
func (g Geometry) CHS(lba uint64) CHS {
	spt := uint64(g.SectorsPerTrack)
	heads := uint64(g.Heads)

	cylinder := lba / (heads * spt)
	if cylinder > MaxCylinder {
		return saturated
	}

	head := (lba / spt) % heads
	sector := lba%spt + 1

	return CHS{
		byte(head),
		byte(sector&0x3f) | byte((cylinder>>2)&0xc0),
		byte(cylinder),
	}
}

// Cylinder returns the unpacked cylinder.
func (c CHS) Cylinder() uint16 {
	return uint16(c[1]&0xc0)<<2 | uint16(c[2])
}

// Head returns the head.
func (c CHS) Head() uint8 {
	return c[0]
}

// Sector returns the 1-based sector.
func (c CHS) Sector() uint8 {
	return c[1] & 0x3f
}

// String implements fmt.Stringer.
func (c CHS) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Cylinder(), c.Head(), c.Sector())
}
