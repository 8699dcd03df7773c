// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/google/uuid"

	"github.com/siderolabs/diskforge/pkg/endianness"
)

// Header layout.
const (
	HeaderSize = 92
	EntrySize  = 128

	// Revision is GPT revision 1.0.
	Revision = 0x00010000

	// HeaderCRCOffset is the offset of the header checksum, zeroed while computing it.
	HeaderCRCOffset = 16
)

// Signature is the header signature "EFI PART".
var Signature = [8]byte{'E', 'F', 'I', ' ', 'P', 'A', 'R', 'T'}

// Header is the GPT header.
type Header struct {
	DiskGUID uuid.UUID

	CurrentLBA     uint64 // 24
	BackupLBA      uint64 // 32
	FirstUsableLBA uint64 // 40
	LastUsableLBA  uint64 // 48
	EntriesLBA     uint64 // 72

	EntryCount uint32 // 80
	EntrySize  uint32 // 84
	EntriesCRC uint32 // 88
}

// Mirror returns the backup copy of the header.
//
// The backup header sits at the last LBA and points back to the primary, its entry array
// immediately precedes it.
func (h Header) Mirror(entriesLBA uint64) Header {
	backup := h

	backup.CurrentLBA, backup.BackupLBA = h.BackupLBA, h.CurrentLBA
	backup.EntriesLBA = entriesLBA

	return backup
}

// Marshal encodes the header into a sector of sectorSize bytes.
//
// The header checksum is computed over the first HeaderSize bytes with the checksum
// field zeroed, EntriesCRC should be already set.
func (h Header) Marshal(sectorSize uint64) []byte {
	buf := make([]byte, sectorSize)

	copy(buf[0:8], Signature[:])
	binary.LittleEndian.PutUint32(buf[8:12], Revision)
	binary.LittleEndian.PutUint32(buf[12:16], HeaderSize)
	// 16: header CRC, 20: reserved
	binary.LittleEndian.PutUint64(buf[24:32], h.CurrentLBA)
	binary.LittleEndian.PutUint64(buf[32:40], h.BackupLBA)
	binary.LittleEndian.PutUint64(buf[40:48], h.FirstUsableLBA)
	binary.LittleEndian.PutUint64(buf[48:56], h.LastUsableLBA)

	guid := endianness.ToMiddleEndian(h.DiskGUID)
	copy(buf[56:72], guid[:])

	binary.LittleEndian.PutUint64(buf[72:80], h.EntriesLBA)
	binary.LittleEndian.PutUint32(buf[80:84], h.EntryCount)
	binary.LittleEndian.PutUint32(buf[84:88], h.EntrySize)
	binary.LittleEndian.PutUint32(buf[88:92], h.EntriesCRC)

	binary.LittleEndian.PutUint32(buf[HeaderCRCOffset:HeaderCRCOffset+4], crc32.ChecksumIEEE(buf[:HeaderSize]))

	return buf
}
