// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package imager post-processes written disk images: format conversion and compression.
package imager

import (
	"context"
	"fmt"
	"strings"

	"github.com/siderolabs/diskforge/pkg/imager/qemuimg"
)

// DiskFormat is disk format specification.
type DiskFormat int

// DiskFormat values.
const (
	DiskFormatUnknown DiskFormat = iota // unknown
	DiskFormatRaw                       // raw
	DiskFormatQCOW2                     // qcow2
	DiskFormatVMDK                      // vmdk
	DiskFormatVPC                       // vhd
)

var diskFormatNames = []string{"unknown", "raw", "qcow2", "vmdk", "vhd"}

// String implements fmt.Stringer.
func (f DiskFormat) String() string {
	if f < 0 || int(f) >= len(diskFormatNames) {
		return fmt.Sprintf("DiskFormat(%d)", int(f))
	}

	return diskFormatNames[f]
}

// Set implements pflag.Value.
func (f *DiskFormat) Set(s string) error {
	for i, name := range diskFormatNames[1:] {
		if strings.EqualFold(name, s) {
			*f = DiskFormat(i + 1)

			return nil
		}
	}

	return fmt.Errorf("unsupported disk format %q, expected one of %s", s, strings.Join(diskFormatNames[1:], ", "))
}

// Type implements pflag.Value.
func (f *DiskFormat) Type() string {
	return "format"
}

// qemuFormat is the qemu-img name of the format.
func (f DiskFormat) qemuFormat() string {
	if f == DiskFormatVPC {
		return "vpc"
	}

	return f.String()
}

// OutFormat is output compression specification.
type OutFormat int

// OutFormat values.
const (
	OutFormatUnknown OutFormat = iota // unknown
	OutFormatRaw                      // none
	OutFormatZSTD                     // .zst
	OutFormatXZ                       // .xz
	OutFormatGZ                       // .gz
)

var outFormatNames = []string{"unknown", "none", "zstd", "xz", "gz"}

// String implements fmt.Stringer.
func (f OutFormat) String() string {
	if f < 0 || int(f) >= len(outFormatNames) {
		return fmt.Sprintf("OutFormat(%d)", int(f))
	}

	return outFormatNames[f]
}

// Set implements pflag.Value.
func (f *OutFormat) Set(s string) error {
	for i, name := range outFormatNames[1:] {
		if strings.EqualFold(name, s) {
			*f = OutFormat(i + 1)

			return nil
		}
	}

	return fmt.Errorf("unsupported compression %q, expected one of %s", s, strings.Join(outFormatNames[1:], ", "))
}

// Type implements pflag.Value.
func (f *OutFormat) Type() string {
	return "compression"
}

// Extension returns the file name suffix of the compressed output.
func (f OutFormat) Extension() string {
	switch f { //nolint:exhaustive
	case OutFormatZSTD:
		return ".zst"
	case OutFormatXZ:
		return ".xz"
	case OutFormatGZ:
		return ".gz"
	default:
		return ""
	}
}

// Options of the image post-processing.
type Options struct {
	Printf func(string, ...any)

	DiskFormatOptions string

	DiskFormat DiskFormat
	OutFormat  OutFormat
}

// PostProcess converts and compresses the raw image at path and returns the path of the final artifact.
//
// Converted images get the format as the file extension, the raw image is removed.
func PostProcess(ctx context.Context, path string, opts Options) (string, error) {
	printf := opts.Printf
	if printf == nil {
		printf = func(string, ...any) {}
	}

	switch opts.DiskFormat {
	case DiskFormatRaw, DiskFormatUnknown:
		// nothing to do
	case DiskFormatQCOW2, DiskFormatVMDK, DiskFormatVPC:
		dest := strings.TrimSuffix(path, ".raw") + "." + opts.DiskFormat.String()

		if err := qemuimg.Convert(ctx, "raw", opts.DiskFormat.qemuFormat(), opts.DiskFormatOptions, path, dest, printf); err != nil {
			return "", fmt.Errorf("error converting image to %s: %w", opts.DiskFormat, err)
		}

		path = dest
	default:
		return "", fmt.Errorf("unsupported disk format: %s", opts.DiskFormat)
	}

	var err error

	switch opts.OutFormat {
	case OutFormatRaw, OutFormatUnknown:
		return path, nil
	case OutFormatZSTD:
		err = postProcessZstd(ctx, path, printf)
	case OutFormatXZ:
		err = postProcessXz(ctx, path)
	case OutFormatGZ:
		err = postProcessGz(ctx, path)
	default:
		return "", fmt.Errorf("unsupported output format: %s", opts.OutFormat)
	}

	if err != nil {
		return "", fmt.Errorf("error compressing image: %w", err)
	}

	return path + opts.OutFormat.Extension(), nil
}
