// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partitioning

import (
	"errors"
	"fmt"
)

var (
	// Specification.

	// ErrValidation denotes a malformed partition table specification.
	ErrValidation = errors.New("invalid partition table specification")
	// ErrUnsupportedCombination denotes a filesystem kind without a type identifier for the table type.
	ErrUnsupportedCombination = errors.New("unsupported filesystem and table type combination")

	// Resolution.

	// ErrLayoutOverlap denotes two partitions (or a partition and a reserved region) sharing sectors.
	ErrLayoutOverlap = errors.New("partitions overlap")
	// ErrAmbiguousLayout denotes more than one partition in a run without an explicit size.
	ErrAmbiguousLayout = errors.New("ambiguous partition layout")
	// ErrOutOfBounds denotes a partition which doesn't fit into the usable area of the disk.
	ErrOutOfBounds = errors.New("partition outside of the usable area")
	// ErrDiskTooSmall denotes a disk which can't hold the partition table metadata.
	ErrDiskTooSmall = errors.New("disk is too small for the partition table")

	// Encoding.

	// ErrTooManyEntries denotes more partitions than the table can hold.
	ErrTooManyEntries = errors.New("too many partition entries")
	// ErrSectorCountOverflow denotes an address which doesn't fit into 32-bit MBR fields.
	ErrSectorCountOverflow = errors.New("sector count overflows 32-bit addressing")
	// ErrNameTooLong denotes a GPT partition name longer than 36 UTF-16 code units.
	ErrNameTooLong = errors.New("partition name is too long")
)

// NoIndex is used as the partition index for errors about the table as a whole.
const NoIndex = -1

// PartitionError describes a problem with a single partition (or the table, if Index is NoIndex).
//
// PartitionError matches the wrapped sentinel with errors.Is.
type PartitionError struct {
	Err     error
	Field   string
	Message string
	Index   int
}

// Error implements error interface.
func (e *PartitionError) Error() string {
	subject := "table"
	if e.Index != NoIndex {
		subject = fmt.Sprintf("partition %d", e.Index)
	}

	if e.Field != "" {
		subject += " " + e.Field
	}

	if e.Message == "" {
		return fmt.Sprintf("%s: %s", subject, e.Err)
	}

	return fmt.Sprintf("%s: %s: %s", subject, e.Err, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *PartitionError) Unwrap() error {
	return e.Err
}

// Invalid builds a validation error for the partition field.
func Invalid(index int, field, format string, args ...any) error {
	return &PartitionError{
		Err:     ErrValidation,
		Index:   index,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// Errorf builds an error for the partition field wrapping the sentinel.
func Errorf(sentinel error, index int, field, format string, args ...any) error {
	return &PartitionError{
		Err:     sentinel,
		Index:   index,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// OverlapError describes two partitions sharing sectors.
//
// Other is NoIndex when the partition overlaps a reserved metadata region, Region names it.
type OverlapError struct {
	Region string
	Index  int
	Other  int
	Start  uint64
	End    uint64
}

// Error implements error interface.
func (e *OverlapError) Error() string {
	if e.Other == NoIndex {
		return fmt.Sprintf("%s: partition %d [%d, %d] overlaps %s", ErrLayoutOverlap, e.Index, e.Start, e.End, e.Region)
	}

	return fmt.Sprintf("%s: partition %d [%d, %d] overlaps partition %d", ErrLayoutOverlap, e.Index, e.Start, e.End, e.Other)
}

// Is implements errors.Is.
func (e *OverlapError) Is(target error) bool {
	return target == ErrLayoutOverlap //nolint:errorlint
}

// AmbiguousError describes two partitions in the same run without an explicit size.
type AmbiguousError struct {
	Index int
	Other int
}

// Error implements error interface.
func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s: partitions %d and %d both omit the size and share the same free space", ErrAmbiguousLayout, e.Index, e.Other)
}

// Is implements errors.Is.
func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguousLayout //nolint:errorlint
}
