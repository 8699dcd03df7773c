// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

func newConfigCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if len(s.sources.Files) == 0 {
				fmt.Fprintln(out, "## defaults")
			}

			for _, path := range s.sources.Files {
				fmt.Fprintf(out, "## %s (sha256:%s)\n", path, hex.EncodeToString(s.sources.Checksums[path]))
			}

			fmt.Fprintln(out)

			return toml.NewEncoder(out).SetIndentTables(true).Encode(s.cfg)
		},
	}
}
