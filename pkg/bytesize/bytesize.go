// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package bytesize implements a command line flag value holding a byte size.
package bytesize

import (
	"errors"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

var _ pflag.Value = (*ByteSize)(nil)

// ByteSize is a pflag.Value which accepts human readable sizes, e.g. 1GiB or 512mb.
type ByteSize struct {
	defaultUnit string
	raw         string
	bytes       uint64
}

// New returns a ByteSize which requires the unit to be always specified.
func New() *ByteSize {
	return &ByteSize{}
}

// WithDefaultUnit returns a ByteSize which appends the unit to plain numbers.
func WithDefaultUnit(unit string) *ByteSize {
	return &ByteSize{defaultUnit: unit}
}

// Set implements pflag.Value.
func (bs *ByteSize) Set(s string) error {
	s = strings.TrimSpace(s)

	if s == "" || s == "0" {
		bs.raw, bs.bytes = "", 0

		return nil
	}

	if strings.IndexFunc(s, unicode.IsLetter) == -1 {
		if bs.defaultUnit == "" {
			return errors.New("no unit specified, e.g. 1GiB or 512MB")
		}

		s += bs.defaultUnit
	}

	value, err := humanize.ParseBytes(s)
	if err != nil {
		return err
	}

	bs.raw, bs.bytes = s, value

	return nil
}

// String implements pflag.Value.
func (bs *ByteSize) String() string {
	if bs.raw == "" {
		return "0"
	}

	return bs.raw
}

// Type implements pflag.Value.
func (bs *ByteSize) Type() string {
	return "bytesize"
}

// Bytes returns the size in bytes.
func (bs *ByteSize) Bytes() uint64 {
	return bs.bytes
}

// Sectors returns the number of whole sectors of sectorSize bytes.
func (bs *ByteSize) Sectors(sectorSize uint64) uint64 {
	return bs.bytes / sectorSize
}
