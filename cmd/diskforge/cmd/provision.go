// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"fmt"

	"github.com/siderolabs/gen/xslices"
	"github.com/spf13/cobra"

	"github.com/siderolabs/diskforge/internal/pkg/provision"
	"github.com/siderolabs/diskforge/pkg/bytesize"
	"github.com/siderolabs/diskforge/pkg/cli"
	"github.com/siderolabs/diskforge/pkg/makefs"
)

func newProvisionCommand(s *state) *cobra.Command {
	var (
		src source
		req provision.Request

		imageSize  = bytesize.New()
		force      bool
		skipFormat bool
	)

	cmd := &cobra.Command{
		Use:   "provision [<document>|-] (--disk <device> | --image <path> [--size <size>])",
		Short: "Partition the disk and create the filesystems",
		Long: `Provision writes the partition table to the block device (or to the image attached to a loop device),
waits for the partition devices and formats every partition with its filesystem.

The disk should be empty unless --force is set, in which case it is wiped first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.WithContext(cmd.Context(), func(ctx context.Context) error {
				var err error

				req.Table, err = src.load(ctx, s, cmd.InOrStdin(), args)
				if err != nil {
					return err
				}

				req.ImageSize = imageSize.Bytes()

				result, err := provision.Provision(ctx, req,
					provision.WithLogger(s.logger),
					provision.WithConfig(s.cfg),
					provision.WithForce(force),
					provision.WithSkipFormat(skipFormat),
				)
				if err != nil {
					return err
				}

				if err = cli.RenderLayout(result.Layout, cmd.OutOrStdout()); err != nil {
					return err
				}

				if len(result.Partitions) == 0 {
					return nil
				}

				fmt.Fprintln(cmd.OutOrStdout())

				return cli.RenderPartitions(xslices.Map(result.Partitions, func(p provision.Partition) cli.ProvisionedPartition {
					return cli.ProvisionedPartition{
						Path:       p.Path,
						MountPoint: p.MountPoint,
						Filesystem: string(p.Filesystem),
						Volumes: xslices.Map(p.Volumes, func(lv makefs.LogicalVolume) string {
							return lv.Path
						}),
					}
				}), cmd.OutOrStdout())
			})
		},
	}

	src.addFlags(cmd.Flags())
	cmd.Flags().StringVar(&req.Disk, "disk", "", "path to the block device")
	cmd.Flags().StringVar(&req.Image, "image", "", "path to the raw disk image")
	cmd.Flags().Var(imageSize, "size", "create the image of the given size")
	cmd.Flags().BoolVar(&force, "force", false, "wipe the disk if it is not empty")
	cmd.Flags().BoolVar(&skipFormat, "skip-format", false, "only write the partition table")

	cmd.MarkFlagsMutuallyExclusive("disk", "image")
	cmd.MarkFlagsOneRequired("disk", "image")
	cmd.MarkFlagsMutuallyExclusive("disk", "size")

	return cmd
}
