// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package partitioning generates GPT and MBR partition tables from a declarative layout.
//
// The subpackages are leaf-first: layout (model and validation), parttype (type identifiers),
// resolve (geometry), mbr and gpt (encoders) and table (the whole pipeline).
package partitioning

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Region is a chunk of bytes which should be written at Offset (in bytes) of the target device.
type Region struct {
	Name   string
	Data   []byte
	Offset uint64
}

// String implements fmt.Stringer.
func (r Region) String() string {
	return fmt.Sprintf("%s@%d (%s)", r.Name, r.Offset, humanize.IBytes(uint64(len(r.Data))))
}

// End returns the first byte offset after the region.
func (r Region) End() uint64 {
	return r.Offset + uint64(len(r.Data))
}
