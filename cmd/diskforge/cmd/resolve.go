// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siderolabs/diskforge/pkg/bytesize"
	"github.com/siderolabs/diskforge/pkg/cli"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
	"github.com/siderolabs/diskforge/pkg/partitioning/table"
)

// diskFlags describe the target disk.
type diskFlags struct {
	size       *bytesize.ByteSize
	sectorSize *bytesize.ByteSize
}

func newDiskFlags(cmd *cobra.Command) *diskFlags {
	f := &diskFlags{
		size:       bytesize.New(),
		sectorSize: bytesize.WithDefaultUnit("B"),
	}

	cmd.Flags().Var(f.size, "size", "disk size, e.g. 8GiB")
	cmd.Flags().Var(f.sectorSize, "sector-size", "logical sector size, overrides the configuration")

	return f
}

// generate runs the partition table pipeline for a disk of the flag size.
func (f *diskFlags) generate(s *state, t *layout.Table) (*table.Result, error) {
	if f.size.Bytes() == 0 {
		return nil, errors.New("--size is required")
	}

	sectorSize := f.sectorSize.Bytes()
	if sectorSize == 0 {
		sectorSize = uint64(s.cfg.Disk.SectorSize)
	}

	if f.size.Bytes()%sectorSize != 0 {
		return nil, fmt.Errorf("disk size %s is not a multiple of the sector size %d", f.size, sectorSize)
	}

	return table.Generate(t, f.size.Sectors(sectorSize), s.cfg.TableOptions(sectorSize)...)
}

func newResolveCommand(s *state) *cobra.Command {
	var src source

	cmd := &cobra.Command{
		Use:   "resolve [<document>|-] --size <size>",
		Short: "Print the partition layout placed on a disk of the given size",
		Args:  cobra.MaximumNArgs(1),
	}

	target := newDiskFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(cmd.Context(), func(ctx context.Context) error {
			t, err := src.load(ctx, s, cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			result, err := target.generate(s, t)
			if err != nil {
				return err
			}

			cli.RenderWarnings(result.Warnings, cmd.OutOrStdout())

			return cli.RenderLayout(result.Layout, cmd.OutOrStdout())
		})
	}

	src.addFlags(cmd.Flags())

	return cmd
}
