// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siderolabs/diskforge/pkg/cli"
	"github.com/siderolabs/diskforge/pkg/partitioning/table"
)

func newValidateCommand(s *state) *cobra.Command {
	var src source

	cmd := &cobra.Command{
		Use:   "validate [<document>|-]",
		Short: "Validate the partition layout",
		Long:  `Validate checks the layout document and prints the warnings, the disk size is not needed.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.WithContext(cmd.Context(), func(ctx context.Context) error {
				t, err := src.load(ctx, s, cmd.InOrStdin(), args)
				if err != nil {
					return err
				}

				warnings, err := table.Validate(t)

				cli.RenderWarnings(warnings, cmd.OutOrStdout())

				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s partition table with %d partitions is valid\n", t.Type, len(t.Partitions))

				return nil
			})
		},
	}

	src.addFlags(cmd.Flags())

	return cmd
}
