// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mbr encodes classic MBR partition tables.
package mbr

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/siderolabs/diskforge/pkg/partitioning"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
	"github.com/siderolabs/diskforge/pkg/partitioning/resolve"
)

// MBR layout.
const (
	Size = 512

	DiskSignatureOffset = 440
	EntriesOffset       = 446
	EntrySize           = 16
	MaxEntries          = 4
	BootSignatureOffset = 510

	BootIndicatorActive = 0x80
)

// BootSignature is stored at BootSignatureOffset.
var BootSignature = [2]byte{0x55, 0xaa}

// Entry is a primary partition entry.
type Entry struct {
	Geometry Geometry
	StartLBA uint64
	Sectors  uint64
	Type     uint8
	Bootable bool
}

// Option is the functional option func.
type Option func(*Options)

// Options for the encoder.
type Options struct {
	Geometry Geometry
}

// WithGeometry sets the geometry for partitions which don't carry their own.
func WithGeometry(g Geometry) Option {
	return func(o *Options) {
		o.Geometry = g
	}
}

// NewDefaultOptions initializes a Options struct with default values.
func NewDefaultOptions(setters ...Option) *Options {
	opts := &Options{
		Geometry: DefaultGeometry,
	}

	for _, setter := range setters {
		setter(opts)
	}

	return opts
}

// Encode serializes the resolved MBR layout into the first sector of the disk.
func Encode(l *resolve.Layout, setters ...Option) (partitioning.Region, error) {
	opts := NewDefaultOptions(setters...)

	if err := opts.Geometry.Validate(); err != nil {
		return partitioning.Region{}, fmt.Errorf("%w: %w", partitioning.ErrValidation, err)
	}

	entries := make([]Entry, 0, len(l.Partitions))

	for _, p := range l.Partitions {
		part, ok := p.Spec.(*layout.MBRPartition)
		if !ok {
			return partitioning.Region{}, partitioning.Invalid(p.Index, "type", "%s partition in a MBR table", p.Spec.TableType())
		}

		entry := Entry{
			Bootable: part.Common.Bootable,
			Type:     part.TypeCode,
			StartLBA: p.StartLBA,
			Sectors:  p.LengthLBA,
			Geometry: opts.Geometry,
		}

		if fat := part.Common.Filesystem.FAT; fat.HasGeometry() {
			entry.Geometry = Geometry{Heads: *fat.Heads, SectorsPerTrack: *fat.SectorsPerTrack}
		}

		entries = append(entries, entry)
	}

	data, err := Build(l.Table.DiskSignature, entries)
	if err != nil {
		return partitioning.Region{}, err
	}

	return partitioning.Region{Name: "mbr", Offset: 0, Data: data}, nil
}

// Build assembles the MBR sector from the entries.
//
// The boot code area is left zeroed, the disk signature is written only if not zero.
func Build(signature uint32, entries []Entry) ([]byte, error) {
	if len(entries) > MaxEntries {
		return nil, partitioning.Errorf(partitioning.ErrTooManyEntries, partitioning.NoIndex, "partitions",
			"%d partitions, MBR holds at most %d", len(entries), MaxEntries)
	}

	buf := make([]byte, Size)

	if signature != 0 {
		binary.LittleEndian.PutUint32(buf[DiskSignatureOffset:], signature)
	}

	for i, entry := range entries {
		if entry.StartLBA > math.MaxUint32 {
			return nil, partitioning.Errorf(partitioning.ErrSectorCountOverflow, i, "start", "LBA %d", entry.StartLBA)
		}

		if entry.Sectors > math.MaxUint32 {
			return nil, partitioning.Errorf(partitioning.ErrSectorCountOverflow, i, "size", "%d sectors", entry.Sectors)
		}

		if entry.Sectors == 0 {
			return nil, partitioning.Invalid(i, "size", "partition is empty")
		}

		if err := entry.Geometry.Validate(); err != nil {
			return nil, partitioning.Invalid(i, "geometry", "%s", err)
		}

		b := buf[EntriesOffset+i*EntrySize : EntriesOffset+(i+1)*EntrySize]

		if entry.Bootable {
			b[0] = BootIndicatorActive
		}

		start := entry.Geometry.CHS(entry.StartLBA)
		end := entry.Geometry.CHS(entry.StartLBA + entry.Sectors - 1)

		copy(b[1:4], start[:])
		b[4] = entry.Type
		copy(b[5:8], end[:])
		binary.LittleEndian.PutUint32(b[8:12], uint32(entry.StartLBA))
		binary.LittleEndian.PutUint32(b[12:16], uint32(entry.Sectors))
	}

	copy(buf[BootSignatureOffset:], BootSignature[:])

	return buf, nil
}
