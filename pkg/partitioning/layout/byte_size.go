// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package layout

import (
	"encoding"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/siderolabs/go-pointer"
	"gopkg.in/yaml.v3"
)

// Check interfaces.
var (
	_ encoding.TextMarshaler   = ByteSize{}
	_ encoding.TextUnmarshaler = (*ByteSize)(nil)
	_ yaml.IsZeroer            = ByteSize{}
	_ yaml.Unmarshaler         = (*Hex32)(nil)
)

// ByteSize is a byte size which can be represented either as a plain number of bytes
// or as a human readable string with IEC/SI sizes, e.g. 100MiB.
type ByteSize struct {
	value *uint64
	raw   []byte
}

// MustByteSize returns a new ByteSize with the given value.
//
// It panics if the value is invalid.
func MustByteSize(value string) ByteSize {
	var bs ByteSize

	if err := bs.UnmarshalText([]byte(value)); err != nil {
		panic(err)
	}

	return bs
}

// Bytes builds a ByteSize from the number of bytes.
func Bytes(value uint64) ByteSize {
	return ByteSize{value: pointer.To(value)}
}

// Value returns the value.
func (bs ByteSize) Value() uint64 {
	return pointer.SafeDeref(bs.value)
}

// Pointer returns nil if the size is not set.
func (bs ByteSize) Pointer() *uint64 {
	if bs.value == nil {
		return nil
	}

	return pointer.To(*bs.value)
}

// MarshalText implements encoding.TextMarshaler.
func (bs ByteSize) MarshalText() ([]byte, error) {
	if bs.raw != nil {
		return bs.raw, nil
	}

	if bs.value != nil {
		return []byte(strconv.FormatUint(*bs.value, 10)), nil
	}

	return nil, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (bs *ByteSize) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return nil
	}

	value, err := humanize.ParseBytes(string(text))
	if err != nil {
		return err
	}

	bs.value = pointer.To(value)
	bs.raw = slices.Clone(text)

	return nil
}

// IsZero implements yaml.IsZeroer.
func (bs ByteSize) IsZero() bool {
	return bs.value == nil && bs.raw == nil
}

// Hex32 is a 32-bit value which is written either as a number or as a hex string.
type Hex32 uint32

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *Hex32) UnmarshalYAML(node *yaml.Node) error {
	var s string

	if err := node.Decode(&s); err != nil {
		return err
	}

	v, err := ParseHex32(s)
	if err != nil {
		return err
	}

	*h = Hex32(v)

	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (h Hex32) MarshalYAML() (any, error) {
	return fmt.Sprintf("0x%08x", uint32(h)), nil
}

// ParseHex32 parses a decimal, 0x-prefixed or bare hex (with a-f digits) 32-bit number.
func ParseHex32(s string) (uint32, error) {
	s = strings.TrimSpace(s)

	base := 0

	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") && strings.ContainsAny(strings.ToLower(s), "abcdef") {
		base = 16
	}

	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid 32-bit value %q: %w", s, err)
	}

	return uint32(v), nil
}
