// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt

import (
	"encoding/binary"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/siderolabs/diskforge/pkg/endianness"
	"github.com/siderolabs/diskforge/pkg/partitioning"
)

// MaxNameLength is the length of the partition name in UTF-16 code units.
const MaxNameLength = 36

// Entry is a partition entry in the GUID partition table.
type Entry struct {
	Name string

	Type     uuid.UUID // 0
	ID       uuid.UUID // 16
	FirstLBA uint64    // 32
	LastLBA  uint64    // 40

	// Attributes:
	//   0: platform required
	//   1: EFI firmware should ignore the partition
	//   2: legacy BIOS bootable
	//   60: read-only
	//   62: hidden
	//   63: do not automount
	Attributes uint64 // 48
}

// EncodeName encodes the partition name as UTF-16LE.
func EncodeName(name string) ([]byte, error) {
	utf16 := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

	return utf16.NewEncoder().Bytes([]byte(name))
}

// MarshalTo writes the entry into the EntrySize bytes of b.
func (e *Entry) MarshalTo(index int, b []byte) error {
	name, err := EncodeName(e.Name)
	if err != nil {
		return partitioning.Invalid(index, "name", "%s", err)
	}

	if len(name) > MaxNameLength*2 {
		return partitioning.Errorf(partitioning.ErrNameTooLong, index, "name", "%q is %d UTF-16 code units, at most %d are allowed", e.Name, len(name)/2, MaxNameLength)
	}

	typ := endianness.ToMiddleEndian(e.Type)
	id := endianness.ToMiddleEndian(e.ID)

	copy(b[0:16], typ[:])
	copy(b[16:32], id[:])
	binary.LittleEndian.PutUint64(b[32:40], e.FirstLBA)
	binary.LittleEndian.PutUint64(b[40:48], e.LastLBA)
	binary.LittleEndian.PutUint64(b[48:56], e.Attributes)

	// the name is null-padded to 72 bytes
	clear(b[56:EntrySize])
	copy(b[56:EntrySize], name)

	return nil
}
