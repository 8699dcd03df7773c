// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package oci fetches image configurations carrying the partition layout labels.
package oci

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/siderolabs/go-retry/retry"
	"go.uber.org/zap"
)

// Options for fetching the image config.
type Options struct {
	// Platform selects the image from a multi-platform index, e.g. linux/amd64.
	Platform string
	Timeout  time.Duration
	Insecure bool
}

// Option is the functional option func.
type Option func(*Options)

// WithPlatform sets the platform.
func WithPlatform(platform string) Option {
	return func(o *Options) {
		o.Platform = platform
	}
}

// WithInsecure allows plain HTTP registries.
func WithInsecure(insecure bool) Option {
	return func(o *Options) {
		o.Insecure = insecure
	}
}

// WithTimeout sets the overall retry timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.Timeout = timeout
	}
}

// permanent lists registry error codes which are not retried.
var permanent = []string{"MANIFEST_UNKNOWN", "NAME_UNKNOWN", "UNAUTHORIZED", "DENIED", "NAME_INVALID"}

// FetchConfig fetches the image config of the reference from its registry.
func FetchConfig(ctx context.Context, logger *zap.Logger, image string, setters ...Option) (*ocispec.Image, error) {
	opts := Options{
		Timeout: 5 * time.Minute,
	}

	for _, setter := range setters {
		setter(&opts)
	}

	var nameOpts []name.Option

	if opts.Insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}

	ref, err := name.ParseReference(image, nameOpts...)
	if err != nil {
		return nil, fmt.Errorf("error parsing image reference %q: %w", image, err)
	}

	craneOpts := []crane.Option{}

	if opts.Insecure {
		craneOpts = append(craneOpts, crane.Insecure)
	}

	if opts.Platform != "" {
		platform, err := v1.ParsePlatform(opts.Platform)
		if err != nil {
			return nil, fmt.Errorf("error parsing platform %q: %w", opts.Platform, err)
		}

		craneOpts = append(craneOpts, crane.WithPlatform(platform))
	}

	logger = logger.With(zap.String("image", ref.Name()))

	var raw []byte

	r := retry.Exponential(
		opts.Timeout,
		retry.WithUnits(time.Second),
		retry.WithJitter(time.Second),
	)

	if err = r.RetryWithContext(ctx, func(ctx context.Context) error {
		var fetchErr error

		raw, fetchErr = crane.Config(ref.Name(), append(craneOpts, crane.WithContext(ctx))...)
		if fetchErr == nil {
			return nil
		}

		for _, code := range permanent {
			if strings.Contains(fetchErr.Error(), code) {
				return fetchErr
			}
		}

		logger.Warn("failed to fetch image config, retrying", zap.Error(fetchErr))

		return retry.ExpectedError(fetchErr)
	}); err != nil {
		return nil, fmt.Errorf("error fetching image config: %w", err)
	}

	logger.Debug("fetched image config", zap.Int("size", len(raw)))

	return ParseConfig(raw)
}

// LoadConfig reads an image config JSON document from a file.
func LoadConfig(path string) (*ocispec.Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseConfig(raw)
}

// ParseConfig decodes an image config JSON document.
func ParseConfig(raw []byte) (*ocispec.Image, error) {
	var img ocispec.Image

	if err := json.Unmarshal(raw, &img); err != nil {
		return nil, fmt.Errorf("error decoding image config: %w", err)
	}

	return &img, nil
}
