// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package provision

import (
	"errors"

	"go.uber.org/zap"

	"github.com/siderolabs/diskforge/internal/pkg/config"
)

// Option controls Provision.
type Option func(o *Options) error

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			return errors.New("logger should not be nil")
		}

		o.Logger = logger

		return nil
	}
}

// WithConfig sets the tool configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *Options) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		o.Config = cfg

		return nil
	}
}

// WithForce allows provisioning a disk which is not empty, the disk is wiped first.
func WithForce(force bool) Option {
	return func(o *Options) error {
		o.Force = force

		return nil
	}
}

// WithSkipFormat only writes the partition table.
func WithSkipFormat(skip bool) Option {
	return func(o *Options) error {
		o.SkipFormat = skip

		return nil
	}
}

// Options describes Provision parameters.
type Options struct {
	Logger *zap.Logger
	Config *config.Config

	Force      bool
	SkipFormat bool
}

// DefaultOptions returns default options.
func DefaultOptions() Options {
	return Options{
		Logger: zap.NewNop(),
		Config: config.Default(),
	}
}
