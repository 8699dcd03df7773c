// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package endianness converts GUIDs between RFC 4122 byte order and the
// middle-endian order used on disk by GPT.
package endianness

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// ToMiddleEndian returns the on-disk representation of the GUID.
//
// The first three fields (time low, time mid, time high) are stored little-endian,
// the clock sequence and the node are stored as is.
func ToMiddleEndian(id uuid.UUID) [16]byte {
	var b [16]byte

	binary.LittleEndian.PutUint32(b[0:4], binary.BigEndian.Uint32(id[0:4]))
	binary.LittleEndian.PutUint16(b[4:6], binary.BigEndian.Uint16(id[4:6]))
	binary.LittleEndian.PutUint16(b[6:8], binary.BigEndian.Uint16(id[6:8]))
	copy(b[8:], id[8:])

	return b
}

// FromMiddleEndian converts the on-disk representation of the GUID back.
func FromMiddleEndian(data []byte) (uuid.UUID, error) {
	if len(data) != 16 {
		return uuid.Nil, fmt.Errorf("invalid GUID length %d", len(data))
	}

	var id uuid.UUID

	binary.BigEndian.PutUint32(id[0:4], binary.LittleEndian.Uint32(data[0:4]))
	binary.BigEndian.PutUint16(id[4:6], binary.LittleEndian.Uint16(data[4:6]))
	binary.BigEndian.PutUint16(id[6:8], binary.LittleEndian.Uint16(data[6:8]))
	copy(id[8:], data[8:])

	return id, nil
}
