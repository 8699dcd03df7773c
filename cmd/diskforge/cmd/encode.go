// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siderolabs/diskforge/internal/pkg/disk"
	"github.com/siderolabs/diskforge/pkg/cli"
	"github.com/siderolabs/diskforge/pkg/imager"
	"github.com/siderolabs/diskforge/pkg/logging"
	"github.com/siderolabs/diskforge/pkg/partitioning"
)

func newEncodeCommand(s *state) *cobra.Command {
	var (
		src    source
		output string
		force  bool

		post = imager.Options{
			DiskFormat: imager.DiskFormatRaw,
			OutFormat:  imager.OutFormatRaw,
		}
	)

	cmd := &cobra.Command{
		Use:   "encode [<document>|-] --size <size> --output <path>",
		Short: "Write the partition table into a new disk image",
		Long: `Encode creates a sparse raw image of the given size with the partition table written into it.

The image can be converted with qemu-img and compressed afterwards, the partitions are not formatted.`,
		Args: cobra.MaximumNArgs(1),
	}

	target := newDiskFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(cmd.Context(), func(ctx context.Context) error {
			if output == "" {
				return errors.New("--output is required")
			}

			t, err := src.load(ctx, s, cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			result, err := target.generate(s, t)
			if err != nil {
				return err
			}

			for _, warning := range result.Warnings {
				s.logger.Warn(warning)
			}

			if _, err = os.Stat(output); err == nil {
				if !force {
					return fmt.Errorf("%s already exists, use --force to overwrite it", output)
				}

				if err = os.Remove(output); err != nil {
					return err
				}
			}

			logger := s.logger.With(logging.Component("encode"))
			post.Printf = logging.Printf(logger)

			final, err := encodeImage(ctx, logger, output, target.size.Bytes(), result.Regions, post)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), final)

			return nil
		})
	}

	src.addFlags(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "path to the raw image")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite the existing image")
	cmd.Flags().Var(&post.DiskFormat, "format", "output disk format (raw, qcow2, vmdk, vhd)")
	cmd.Flags().StringVar(&post.DiskFormatOptions, "format-options", "", "qemu-img options of the output disk format")
	cmd.Flags().Var(&post.OutFormat, "compress", "output compression (none, zstd, xz, gz)")

	return cmd
}

func encodeImage(ctx context.Context, logger *zap.Logger, output string, size uint64, regions []partitioning.Region, post imager.Options) (string, error) {
	if err := disk.CreateImage(post.Printf, output, size); err != nil {
		return "", err
	}

	if err := disk.WriteImage(output, regions); err != nil {
		return "", err
	}

	logger.Info("wrote partition table", zap.String("path", output), zap.Int("regions", len(regions)))

	return imager.PostProcess(ctx, output, post)
}
