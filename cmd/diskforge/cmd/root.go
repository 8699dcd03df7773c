// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cmd implements the diskforge commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siderolabs/diskforge/internal/pkg/config"
	"github.com/siderolabs/diskforge/pkg/logging"
)

const (
	layoutGroup = "layout"
	diskGroup   = "disk"
)

// state is shared by the commands of a single invocation.
type state struct {
	cfg     *config.Config
	sources *config.Sources
	logger  *zap.Logger

	configPath    string
	logLevel      string
	generateGUIDs bool
}

// NewCommand builds the root command with all subcommands.
func NewCommand() *cobra.Command {
	s := &state{}

	rootCmd := &cobra.Command{
		Use:               "diskforge",
		Short:             "Generate GPT and MBR partition tables and provision disks",
		Long:              ``,
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if s.logger != nil {
				s.logger.Sync() //nolint:errcheck
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.configPath, "config", config.DefaultPath, "path to the configuration file (drop-ins are read from the "+config.DropInDir+" directory next to it)")
	rootCmd.PersistentFlags().StringVar(&s.logLevel, "log-level", "", "log level (debug, info, warn, error), overrides the configuration")
	rootCmd.PersistentFlags().BoolVar(&s.generateGUIDs, "generate-guids", false, "generate random disk and partition GUIDs missing in the layout")

	rootCmd.AddGroup(&cobra.Group{ID: layoutGroup, Title: "Partition layout commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: diskGroup, Title: "Disk and image commands:"})

	for _, cmd := range []*cobra.Command{
		newValidateCommand(s),
		newResolveCommand(s),
		newLabelsCommand(s),
	} {
		cmd.GroupID = layoutGroup
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{
		newEncodeCommand(s),
		newProvisionCommand(s),
	} {
		cmd.GroupID = diskGroup
		rootCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(newConfigCommand(s))

	return rootCmd
}

func (s *state) init(cmd *cobra.Command) error {
	cfg, sources, err := config.Load(s.configPath)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	levelName := cfg.Log.Level
	if s.logLevel != "" {
		levelName = s.logLevel
	}

	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}

	s.cfg = cfg
	s.sources = sources
	s.logger = logging.ZapLogger(
		logging.NewLogDestination(
			cmd.ErrOrStderr(),
			level,
			logging.WithoutTimestamp(),
			logging.WithTerminalColors(cmd.ErrOrStderr()),
		),
	)

	return nil
}

// Execute runs the root command.
// This is called by main.main().
func Execute() error {
	rootCmd := NewCommand()

	cmd, err := rootCmd.ExecuteContextC(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())

		// arg and flag validation errors are plain errors, so match on the text
		errorString := err.Error()
		if strings.Contains(errorString, "arg(s)") || strings.Contains(errorString, "flag") || strings.Contains(errorString, "command") {
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, cmd.UsageString())
		}
	}

	return err
}
