// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package table runs the whole partition table pipeline: validation, resolution and encoding.
package table

import (
	"fmt"

	"github.com/siderolabs/diskforge/pkg/partitioning"
	"github.com/siderolabs/diskforge/pkg/partitioning/gpt"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
	"github.com/siderolabs/diskforge/pkg/partitioning/mbr"
	"github.com/siderolabs/diskforge/pkg/partitioning/parttype"
	"github.com/siderolabs/diskforge/pkg/partitioning/resolve"
)

// Options for the pipeline.
type Options struct {
	Resolve []resolve.Option
	GPT     []gpt.Option
	MBR     []mbr.Option
}

// Option is the functional option func.
type Option func(*Options)

// WithResolveOptions appends resolver options.
func WithResolveOptions(opts ...resolve.Option) Option {
	return func(o *Options) {
		o.Resolve = append(o.Resolve, opts...)
	}
}

// WithGPTOptions appends GPT encoder options.
func WithGPTOptions(opts ...gpt.Option) Option {
	return func(o *Options) {
		o.GPT = append(o.GPT, opts...)
	}
}

// WithMBROptions appends MBR encoder options.
func WithMBROptions(opts ...mbr.Option) Option {
	return func(o *Options) {
		o.MBR = append(o.MBR, opts...)
	}
}

// Result of the pipeline.
type Result struct {
	Layout   *resolve.Layout
	Regions  []partitioning.Region
	Warnings []string
}

// Generate validates the table, places it on a disk of diskSectors sectors and encodes it.
func Generate(t *layout.Table, diskSectors uint64, setters ...Option) (*Result, error) {
	var opts Options

	for _, setter := range setters {
		setter(&opts)
	}

	warnings, err := Validate(t)
	if err != nil {
		return nil, err
	}

	l, err := resolve.Resolve(t, diskSectors, opts.Resolve...)
	if err != nil {
		return nil, fmt.Errorf("error resolving partition layout: %w", err)
	}

	regions, err := Encode(l, &opts)
	if err != nil {
		return nil, err
	}

	return &Result{
		Layout:   l,
		Regions:  regions,
		Warnings: warnings,
	}, nil
}

// Validate validates the table, and adds warnings about MBR type codes not matching the filesystems.
func Validate(t *layout.Table) ([]string, error) {
	warnings, err := t.Validate()
	if err != nil {
		return warnings, fmt.Errorf("error validating partition table: %w", err)
	}

	for i, p := range t.Partitions {
		part, ok := p.(*layout.MBRPartition)
		if !ok {
			continue
		}

		expected, err := parttype.MBR(part.Common.Filesystem.Kind)
		if err != nil {
			continue
		}

		if expected != part.TypeCode {
			warnings = append(warnings, fmt.Sprintf("partition %d: type code 0x%02x differs from 0x%02x used for %s", i, part.TypeCode, expected, part.Common.Filesystem.Kind))
		}
	}

	return warnings, nil
}

// Encode serializes the resolved layout with the encoder matching the table type.
func Encode(l *resolve.Layout, opts *Options) ([]partitioning.Region, error) {
	switch l.Table.Type {
	case layout.GPT:
		regions, err := gpt.Encode(l, opts.GPT...)
		if err != nil {
			return nil, fmt.Errorf("error encoding GPT: %w", err)
		}

		return regions, nil
	case layout.MBR:
		region, err := mbr.Encode(l, opts.MBR...)
		if err != nil {
			return nil, fmt.Errorf("error encoding MBR: %w", err)
		}

		return []partitioning.Region{region}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported table type %s", partitioning.ErrValidation, l.Table.Type)
	}
}
