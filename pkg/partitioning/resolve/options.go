// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package resolve

// Defaults.
const (
	DefaultSectorSize = 512
	// DefaultAlignment is 1 MiB at 512-byte sectors.
	DefaultAlignment = 2048
	// MinEntries is the minimum number of entries allocated in the GPT entry array.
	MinEntries = 128
	// EntrySize is the size of the GPT partition entry.
	EntrySize = 128
)

// Option is the functional option func.
type Option func(*Options)

// Options configure the resolver.
type Options struct {
	SectorSize uint64
	Alignment  uint64
	MinEntries uint32
}

// WithSectorSize sets the logical sector size in bytes.
func WithSectorSize(size uint64) Option {
	return func(o *Options) {
		o.SectorSize = size
	}
}

// WithAlignment sets the alignment of resolver-assigned partition starts, in sectors.
func WithAlignment(sectors uint64) Option {
	return func(o *Options) {
		o.Alignment = sectors
	}
}

// WithMinEntries sets the minimum number of entries in the GPT entry array.
func WithMinEntries(entries uint32) Option {
	return func(o *Options) {
		o.MinEntries = entries
	}
}

// NewDefaultOptions initializes a Options struct with default values.
func NewDefaultOptions(setters ...Option) *Options {
	opts := &Options{
		SectorSize: DefaultSectorSize,
		Alignment:  DefaultAlignment,
		MinEntries: MinEntries,
	}

	for _, setter := range setters {
		setter(opts)
	}

	return opts
}
