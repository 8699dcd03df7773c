// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt

import "github.com/siderolabs/diskforge/pkg/partitioning/mbr"

// Options is the functional options struct.
type Options struct {
	Geometry  mbr.Geometry
	HybridMBR bool
}

// Option is the functional option func.
type Option func(*Options)

// WithHybridMBR mirrors bootable partitions into the protective MBR.
//
// Hybrid MBR is disabled by default, as some UEFI firmware treats such disks as legacy ones.
func WithHybridMBR(o bool) Option {
	return func(args *Options) {
		args.HybridMBR = o
	}
}

// WithGeometry sets the CHS geometry of the protective MBR entries.
func WithGeometry(g mbr.Geometry) Option {
	return func(args *Options) {
		args.Geometry = g
	}
}

// NewDefaultOptions initializes a Options struct with default values.
func NewDefaultOptions(setters ...Option) *Options {
	opts := &Options{
		Geometry: mbr.DefaultGeometry,
	}

	for _, setter := range setters {
		setter(opts)
	}

	return opts
}
