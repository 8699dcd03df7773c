// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package resolve turns a partition layout into concrete sector ranges.
package resolve

import (
	"fmt"
	"math/bits"
	"slices"

	"github.com/siderolabs/diskforge/pkg/partitioning"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
)

// Layout is the table with every partition placed on the disk.
type Layout struct {
	Table      *layout.Table
	Partitions []Partition

	SectorSize  uint64
	DiskSectors uint64
	Alignment   uint64

	FirstUsableLBA uint64
	LastUsableLBA  uint64

	// GPT only.
	PrimaryEntriesLBA uint64
	BackupEntriesLBA  uint64
	BackupHeaderLBA   uint64
	EntryArraySectors uint64
	EntryCount        uint32
}

// Partition is a resolved partition.
type Partition struct {
	Spec layout.Partition

	StartLBA  uint64
	LengthLBA uint64

	// Index is the position of the partition in the table.
	Index int
}

// EndLBA returns the last sector of the partition (inclusive).
func (p Partition) EndLBA() uint64 {
	return p.StartLBA + p.LengthLBA - 1
}

// Reservation is a metadata region of the table.
type Reservation struct {
	Name     string
	StartLBA uint64
	EndLBA   uint64
}

// Reserved returns the metadata regions of the table.
func (l *Layout) Reserved() []Reservation {
	if l.Table.Type == layout.MBR {
		return []Reservation{{Name: "master boot record", StartLBA: 0, EndLBA: 0}}
	}

	return []Reservation{
		{Name: "protective MBR", StartLBA: 0, EndLBA: 0},
		{Name: "primary GPT header", StartLBA: 1, EndLBA: 1},
		{Name: "primary GPT entries", StartLBA: l.PrimaryEntriesLBA, EndLBA: l.PrimaryEntriesLBA + l.EntryArraySectors - 1},
		{Name: "backup GPT entries", StartLBA: l.BackupEntriesLBA, EndLBA: l.BackupEntriesLBA + l.EntryArraySectors - 1},
		{Name: "backup GPT header", StartLBA: l.BackupHeaderLBA, EndLBA: l.BackupHeaderLBA},
	}
}

// Resolve places every partition of the table on a disk of diskSectors sectors.
//
// Partitions with explicit start are placed verbatim, others start right after the previous
// partition rounded up to the alignment. A partition without size fills the free space up to the
// next partition with explicit start (or the end of the usable area), leaving space for the sized
// partitions between them.
//
// Resolve is deterministic, and it doesn't validate the table, see layout.Table.Validate.
//
//nolint:gocyclo,cyclop
func Resolve(t *layout.Table, diskSectors uint64, setters ...Option) (*Layout, error) {
	opts := NewDefaultOptions(setters...)

	if opts.SectorSize < 512 || bits.OnesCount64(opts.SectorSize) != 1 {
		return nil, fmt.Errorf("%w: sector size %d is not a power of two >= 512", partitioning.ErrValidation, opts.SectorSize)
	}

	if opts.Alignment == 0 {
		return nil, fmt.Errorf("%w: alignment should be at least one sector", partitioning.ErrValidation)
	}

	if t.Type == layout.MBR && len(t.Partitions) > layout.MaxMBRPartitions {
		return nil, partitioning.Errorf(partitioning.ErrTooManyEntries, partitioning.NoIndex, "partitions",
			"%d partitions, MBR holds at most %d", len(t.Partitions), layout.MaxMBRPartitions)
	}

	l := &Layout{
		Table:       t,
		SectorSize:  opts.SectorSize,
		DiskSectors: diskSectors,
		Alignment:   opts.Alignment,
		Partitions:  make([]Partition, 0, len(t.Partitions)),
	}

	if err := l.reserve(len(t.Partitions), opts.MinEntries); err != nil {
		return nil, err
	}

	n := len(t.Partitions)
	starts := make([]*uint64, n)
	sizes := make([]*uint64, n)

	for i, p := range t.Partitions {
		placement := p.Placement()

		starts[i] = placement.StartLBA

		switch {
		case placement.SizeBytes != nil:
			sizes[i] = new(uint64)
			*sizes[i] = divRoundUp(*placement.SizeBytes, l.SectorSize)
		case placement.Filesystem.Kind == layout.FilesystemRaw && placement.Filesystem.Raw != nil:
			sizes[i] = new(uint64)
			*sizes[i] = divRoundUp(placement.Filesystem.Raw.ContentSize, l.SectorSize)
		}

		if sizes[i] != nil && *sizes[i] == 0 {
			return nil, partitioning.Invalid(i, "size", "partition is empty")
		}
	}

	cursor := l.FirstUsableLBA

	for i := range n {
		var start uint64

		if starts[i] != nil {
			start = *starts[i]
		} else {
			start = roundUp(cursor, l.Alignment)
		}

		var length uint64

		if sizes[i] != nil {
			length = *sizes[i]
		} else {
			limit := l.LastUsableLBA + 1

			j := i + 1

			for ; j < n && starts[j] == nil; j++ {
				if sizes[j] == nil {
					return nil, &partitioning.AmbiguousError{Index: i, Other: j}
				}
			}

			// an explicit partition ending the run which collides with the placed ones
			// leaves no room for the run, report the collision itself
			noRoom := func(err error) error {
				if j == n {
					return err
				}

				length := uint64(1)
				if sizes[j] != nil {
					length = *sizes[j]
				}

				if overlap := l.overlapping(j, *starts[j], length); overlap != nil {
					return overlap
				}

				return err
			}

			if j < n {
				limit = *starts[j]
			}

			// sized partitions following this one are packed from the end of the run
			for k := j - 1; k > i; k-- {
				if *sizes[k] > limit {
					return nil, noRoom(partitioning.Errorf(partitioning.ErrOutOfBounds, k, "size", "%d sectors don't fit before LBA %d", *sizes[k], limit))
				}

				limit = roundDown(limit-*sizes[k], l.Alignment)
			}

			if limit <= start {
				return nil, noRoom(partitioning.Errorf(partitioning.ErrOutOfBounds, i, "size", "no free space left at LBA %d", start))
			}

			length = limit - start
		}

		l.Partitions = append(l.Partitions, Partition{
			Spec:      t.Partitions[i],
			Index:     i,
			StartLBA:  start,
			LengthLBA: length,
		})

		cursor = start + length
	}

	if err := l.check(); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *Layout) reserve(partitions int, minEntries uint32) error {
	switch l.Table.Type {
	case layout.GPT:
		l.EntryCount = max(uint32(partitions), minEntries)
		l.EntryArraySectors = divRoundUp(uint64(l.EntryCount)*EntrySize, l.SectorSize)

		// protective MBR, headers, entry arrays and at least one usable sector
		if l.DiskSectors < 2*(1+l.EntryArraySectors)+2 {
			return fmt.Errorf("%w: %d sectors, GPT needs at least %d", partitioning.ErrDiskTooSmall, l.DiskSectors, 2*(1+l.EntryArraySectors)+2)
		}

		l.PrimaryEntriesLBA = 2
		l.FirstUsableLBA = l.PrimaryEntriesLBA + l.EntryArraySectors
		l.BackupHeaderLBA = l.DiskSectors - 1
		l.BackupEntriesLBA = l.BackupHeaderLBA - l.EntryArraySectors
		l.LastUsableLBA = l.BackupEntriesLBA - 1
	case layout.MBR:
		if l.DiskSectors < 2 {
			return fmt.Errorf("%w: %d sectors, MBR needs at least 2", partitioning.ErrDiskTooSmall, l.DiskSectors)
		}

		l.FirstUsableLBA = 1
		l.LastUsableLBA = l.DiskSectors - 1
	default:
		return fmt.Errorf("%w: unsupported table type %s", partitioning.ErrValidation, l.Table.Type)
	}

	return nil
}

// check verifies that partitions are inside the usable area and don't overlap.
func (l *Layout) check() error {
	for _, p := range l.Partitions {
		if p.EndLBA() < p.StartLBA || p.EndLBA() >= l.DiskSectors {
			return partitioning.Errorf(partitioning.ErrOutOfBounds, p.Index, "",
				"[%d, %d] is outside of the usable area [%d, %d]", p.StartLBA, p.EndLBA(), l.FirstUsableLBA, l.LastUsableLBA)
		}

		for _, r := range l.Reserved() {
			if p.StartLBA <= r.EndLBA && r.StartLBA <= p.EndLBA() {
				return &partitioning.OverlapError{
					Index:  p.Index,
					Other:  partitioning.NoIndex,
					Region: r.Name,
					Start:  p.StartLBA,
					End:    p.EndLBA(),
				}
			}
		}
	}

	sorted := slices.Clone(l.Partitions)

	slices.SortStableFunc(sorted, func(a, b Partition) int {
		switch {
		case a.StartLBA < b.StartLBA:
			return -1
		case a.StartLBA > b.StartLBA:
			return 1
		default:
			return a.Index - b.Index
		}
	})

	// widest is the partition reaching furthest among the ones starting before the current one
	for i, widest := 1, 0; i < len(sorted); i++ {
		if sorted[i].StartLBA <= sorted[widest].EndLBA() {
			first, second := sorted[widest], sorted[i]
			if first.Index > second.Index {
				first, second = second, first
			}

			return &partitioning.OverlapError{
				Index: second.Index,
				Other: first.Index,
				Start: second.StartLBA,
				End:   second.EndLBA(),
			}
		}

		if sorted[i].EndLBA() > sorted[widest].EndLBA() {
			widest = i
		}
	}

	return nil
}

// overlapping returns the error describing the collision of the partition with the metadata
// regions or the partitions placed so far, nil if there is none.
func (l *Layout) overlapping(index int, start, length uint64) error {
	end := start + length - 1

	for _, r := range l.Reserved() {
		if start <= r.EndLBA && r.StartLBA <= end {
			return &partitioning.OverlapError{
				Index:  index,
				Other:  partitioning.NoIndex,
				Region: r.Name,
				Start:  start,
				End:    end,
			}
		}
	}

	for _, p := range l.Partitions {
		if start <= p.EndLBA() && p.StartLBA <= end {
			return &partitioning.OverlapError{
				Index: index,
				Other: p.Index,
				Start: start,
				End:   end,
			}
		}
	}

	return nil
}

func divRoundUp(n, d uint64) uint64 {
	return n/d + min(n%d, 1)
}

func roundUp(n, align uint64) uint64 {
	return divRoundUp(n, align) * align
}

func roundDown(n, align uint64) uint64 {
	return n / align * align
}
