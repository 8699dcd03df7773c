// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package qemuimg provides a wrapper around qemu-img.
package qemuimg

import (
	"context"
	"os"

	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// ConvertArgs returns the qemu-img arguments converting src into dest.
func ConvertArgs(inputFmt, outputFmt, options, src, dest string) []string {
	args := []string{"convert", "-f", inputFmt, "-O", outputFmt}

	if options != "" {
		args = append(args, "-o", options)
	}

	return append(args, src, dest)
}

// Convert converts an image from one format to another, src is removed on success.
func Convert(ctx context.Context, inputFmt, outputFmt, options, src, dest string, printf func(string, ...any)) error {
	printf("converting %s to %s", inputFmt, outputFmt)

	if _, err := cmd.RunContext(ctx, "qemu-img", ConvertArgs(inputFmt, outputFmt, options, src, dest)...); err != nil {
		return err
	}

	return os.Remove(src)
}
