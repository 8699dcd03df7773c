// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gpt encodes GUID partition tables.
package gpt

import (
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/siderolabs/diskforge/pkg/partitioning"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
	"github.com/siderolabs/diskforge/pkg/partitioning/mbr"
	"github.com/siderolabs/diskforge/pkg/partitioning/parttype"
	"github.com/siderolabs/diskforge/pkg/partitioning/resolve"
)

// MaxHybridEntries is the number of partitions which can be mirrored into the protective MBR.
const MaxHybridEntries = mbr.MaxEntries - 1

// Region names.
const (
	RegionProtectiveMBR = "protective MBR"
	RegionPrimaryHeader = "primary GPT header"
	RegionPrimaryArray  = "primary GPT entries"
	RegionBackupArray   = "backup GPT entries"
	RegionBackupHeader  = "backup GPT header"
)

// Encode serializes the resolved GPT layout.
//
// Regions are returned in the on-disk order: protective MBR, primary header, primary entries,
// backup entries and backup header.
func Encode(l *resolve.Layout, setters ...Option) ([]partitioning.Region, error) {
	opts := NewDefaultOptions(setters...)

	if l.Table.Type != layout.GPT {
		return nil, fmt.Errorf("%w: can't encode %s table as GPT", partitioning.ErrValidation, l.Table.Type)
	}

	pmbr, err := ProtectiveMBR(l, opts)
	if err != nil {
		return nil, err
	}

	// entries first, as the header carries their checksum
	entries, err := Entries(l)
	if err != nil {
		return nil, err
	}

	primary := Header{
		DiskGUID:       l.Table.DiskGUID,
		CurrentLBA:     1,
		BackupLBA:      l.BackupHeaderLBA,
		FirstUsableLBA: l.FirstUsableLBA,
		LastUsableLBA:  l.LastUsableLBA,
		EntriesLBA:     l.PrimaryEntriesLBA,
		EntryCount:     l.EntryCount,
		EntrySize:      EntrySize,
		EntriesCRC:     crc32.ChecksumIEEE(entries[:uint64(l.EntryCount)*EntrySize]),
	}

	backup := primary.Mirror(l.BackupEntriesLBA)

	return []partitioning.Region{
		{Name: RegionProtectiveMBR, Offset: 0, Data: pmbr},
		{Name: RegionPrimaryHeader, Offset: primary.CurrentLBA * l.SectorSize, Data: primary.Marshal(l.SectorSize)},
		{Name: RegionPrimaryArray, Offset: primary.EntriesLBA * l.SectorSize, Data: entries},
		{Name: RegionBackupArray, Offset: backup.EntriesLBA * l.SectorSize, Data: entries},
		{Name: RegionBackupHeader, Offset: backup.CurrentLBA * l.SectorSize, Data: backup.Marshal(l.SectorSize)},
	}, nil
}

// Entries builds the partition entry array, padded to whole sectors.
func Entries(l *resolve.Layout) ([]byte, error) {
	if len(l.Partitions) > int(l.EntryCount) {
		return nil, partitioning.Errorf(partitioning.ErrTooManyEntries, partitioning.NoIndex, "partitions",
			"%d partitions, the entry array holds %d", len(l.Partitions), l.EntryCount)
	}

	buf := make([]byte, l.EntryArraySectors*l.SectorSize)

	for i, p := range l.Partitions {
		part, ok := p.Spec.(*layout.GPTPartition)
		if !ok {
			return nil, partitioning.Invalid(p.Index, "type", "%s partition in a GPT table", p.Spec.TableType())
		}

		typ, err := parttype.GPT(part.Common.Filesystem.Kind)
		if err != nil {
			return nil, partitioning.Errorf(partitioning.ErrUnsupportedCombination, p.Index, "filesystem", "%s", err)
		}

		entry := Entry{
			Type:       typ,
			ID:         part.GUID,
			FirstLBA:   p.StartLBA,
			LastLBA:    p.EndLBA(),
			Attributes: part.AttributeMask(),
			Name:       part.Name,
		}

		if err = entry.MarshalTo(p.Index, buf[i*EntrySize:(i+1)*EntrySize]); err != nil {
			return nil, err
		}
	}

	return buf, nil
}

// ProtectiveMBR builds the MBR written at LBA 0 of the GPT disk.
//
// Without bootable partitions (or with hybrid MBR disabled) the single 0xEE entry covers the whole
// disk (up to the 32-bit limit). Otherwise the 0xEE entry covers the GPT metadata only, and
// bootable partitions are mirrored into the remaining entries marked active.
func ProtectiveMBR(l *resolve.Layout, opts *Options) ([]byte, error) {
	var hybrid []resolve.Partition

	if opts.HybridMBR {
		for _, p := range l.Partitions {
			if p.Spec.Placement().Bootable {
				hybrid = append(hybrid, p)
			}
		}
	}

	if len(hybrid) == 0 {
		return mbr.Build(0, []mbr.Entry{
			{
				Type:     parttype.MBRGPTProtective,
				StartLBA: 1,
				Sectors:  min(l.DiskSectors-1, math.MaxUint32),
				Geometry: opts.Geometry,
			},
		})
	}

	if len(hybrid) > MaxHybridEntries {
		return nil, partitioning.Errorf(partitioning.ErrTooManyEntries, hybrid[MaxHybridEntries].Index, "bootable",
			"hybrid MBR holds at most %d bootable partitions", MaxHybridEntries)
	}

	entries := []mbr.Entry{
		{
			Type:     parttype.MBRGPTProtective,
			StartLBA: 1,
			Sectors:  l.FirstUsableLBA - 1,
			Geometry: opts.Geometry,
		},
	}

	for _, p := range hybrid {
		code, err := parttype.MBR(p.Spec.Placement().Filesystem.Kind)
		if err != nil {
			return nil, partitioning.Errorf(partitioning.ErrUnsupportedCombination, p.Index, "filesystem", "%s", err)
		}

		if p.StartLBA > math.MaxUint32 {
			return nil, partitioning.Errorf(partitioning.ErrSectorCountOverflow, p.Index, "start",
				"LBA %d can't be mirrored into the hybrid MBR", p.StartLBA)
		}

		if p.LengthLBA > math.MaxUint32 {
			return nil, partitioning.Errorf(partitioning.ErrSectorCountOverflow, p.Index, "size",
				"%d sectors can't be mirrored into the hybrid MBR", p.LengthLBA)
		}

		entries = append(entries, mbr.Entry{
			Bootable: true,
			Type:     code,
			StartLBA: p.StartLBA,
			Sectors:  p.LengthLBA,
			Geometry: opts.Geometry,
		})
	}

	data, err := mbr.Build(0, entries)
	if err != nil {
		// entry 0 is the protective one, the rest follow the hybrid partitions
		var partErr *partitioning.PartitionError

		if errors.As(err, &partErr) {
			switch {
			case partErr.Index == 0:
				partErr.Index = partitioning.NoIndex
			case partErr.Index >= 1 && partErr.Index <= len(hybrid):
				partErr.Index = hybrid[partErr.Index-1].Index
			}
		}

		return nil, fmt.Errorf("error building hybrid MBR: %w", err)
	}

	return data, nil
}
