// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/siderolabs/diskforge/internal/pkg/oci"
	"github.com/siderolabs/diskforge/pkg/cli"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
)

func newLabelsCommand(s *state) *cobra.Command {
	var (
		src     source
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "labels [<image-ref>]",
		Short: "Print the layout document described by the image labels",
		Long: `Labels fetches the config of the image (or reads it from --image-config)
and prints the partition layout stored in its labels as a layout document.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				src.fromImage = args[0]
			}

			return cli.WithContext(cmd.Context(), func(ctx context.Context) error {
				if src.imageSet() != 1 {
					return errors.New("exactly one of the image reference and --image-config should be set")
				}

				img, err := src.config(ctx, s.logger, oci.WithTimeout(timeout))
				if err != nil {
					return err
				}

				t, err := layout.FromImageConfig(img, s.cfg.Labels.Prefix, layout.WithGenerateGUIDs(s.generateGUIDs))
				if err != nil {
					return err
				}

				out, err := layout.NewDocument(t).Marshal()
				if err != nil {
					return err
				}

				_, err = cmd.OutOrStdout().Write(out)

				return err
			})
		},
	}

	cmd.Flags().StringVar(&src.imageConfig, "image-config", "", "read the labels from the image config file (JSON)")
	cmd.Flags().StringVar(&src.platform, "platform", "", "image platform, e.g. linux/arm64 (defaults to the host platform)")
	cmd.Flags().BoolVar(&src.insecure, "insecure", false, "allow plain HTTP registries")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "registry retry timeout")

	return cmd
}
