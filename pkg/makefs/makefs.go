// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package makefs provides functions to create filesystems on partitions.
package makefs

import (
	"github.com/google/uuid"
)

// Option to control makefs settings.
type Option func(*Options)

// Options for makefs.
type Options struct {
	Label string
	Force bool

	UnsupportedFSOption bool

	// VolumeID is the FAT volume serial number.
	VolumeID *uint32
	// Heads and SectorsPerTrack override the FAT geometry (both or none).
	Heads           uint8
	SectorsPerTrack uint8

	// UUID is the ext4 or swap filesystem UUID.
	UUID *uuid.UUID

	Printf func(string, ...any)
}

// WithLabel sets the label for the filesystem to be created.
func WithLabel(label string) Option {
	return func(o *Options) {
		o.Label = label
	}
}

// WithForce forces creation of a filesystem even if one already exists.
func WithForce(force bool) Option {
	return func(o *Options) {
		o.Force = force
	}
}

// WithUnsupportedFSOption allows filesystems below the recommended minimum size.
func WithUnsupportedFSOption(unsupported bool) Option {
	return func(o *Options) {
		o.UnsupportedFSOption = unsupported
	}
}

// WithVolumeID sets the FAT volume ID.
func WithVolumeID(id uint32) Option {
	return func(o *Options) {
		o.VolumeID = &id
	}
}

// WithGeometry sets the FAT heads and sectors per track.
func WithGeometry(heads, sectorsPerTrack uint8) Option {
	return func(o *Options) {
		o.Heads = heads
		o.SectorsPerTrack = sectorsPerTrack
	}
}

// WithUUID sets the filesystem UUID.
func WithUUID(u uuid.UUID) Option {
	return func(o *Options) {
		o.UUID = &u
	}
}

// WithPrintf sets the progress printer.
func WithPrintf(printf func(string, ...any)) Option {
	return func(o *Options) {
		o.Printf = printf
	}
}

// NewDefaultOptions builds options with specified setters applied.
func NewDefaultOptions(setters ...Option) Options {
	opt := Options{
		Printf: func(string, ...any) {},
	}

	for _, o := range setters {
		o(&opt)
	}

	return opt
}
