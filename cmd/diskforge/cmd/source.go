// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/siderolabs/diskforge/internal/pkg/oci"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
)

// source selects where the partition layout comes from.
//
// The layout is read from the document argument ("-" for stdin), from the labels of a
// remote image (--from-image) or from a local image config file (--image-config).
type source struct {
	fromImage   string
	imageConfig string
	platform    string
	insecure    bool
}

func (src *source) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&src.fromImage, "from-image", "", "read the layout from the labels of the image config")
	flags.StringVar(&src.imageConfig, "image-config", "", "read the layout from the labels of the image config file (JSON)")
	flags.StringVar(&src.platform, "platform", "", "image platform, e.g. linux/arm64 (defaults to the host platform)")
	flags.BoolVar(&src.insecure, "insecure", false, "allow plain HTTP registries")
}

func (src *source) imageSet() int {
	n := 0

	for _, v := range []string{src.fromImage, src.imageConfig} {
		if v != "" {
			n++
		}
	}

	return n
}

// config returns the image config from the file or the registry.
func (src *source) config(ctx context.Context, logger *zap.Logger, extra ...oci.Option) (*ocispec.Image, error) {
	if src.imageConfig != "" {
		return oci.LoadConfig(src.imageConfig)
	}

	return oci.FetchConfig(ctx, logger, src.fromImage,
		append([]oci.Option{
			oci.WithPlatform(src.platform),
			oci.WithInsecure(src.insecure),
		}, extra...)...,
	)
}

func (src *source) load(ctx context.Context, s *state, stdin io.Reader, args []string) (*layout.Table, error) {
	if len(args)+src.imageSet() != 1 {
		return nil, errors.New("exactly one of the layout document, --from-image and --image-config should be set")
	}

	opts := []layout.DocumentOption{layout.WithGenerateGUIDs(s.generateGUIDs)}

	var (
		t   *layout.Table
		err error
	)

	switch {
	case len(args) == 1 && args[0] == "-":
		t, err = layout.ParseDocument(stdin, opts...)
	case len(args) == 1:
		t, err = layout.LoadDocument(args[0], opts...)
	default:
		var img *ocispec.Image

		img, err = src.config(ctx, s.logger)
		if err != nil {
			return nil, err
		}

		t, err = layout.FromImageConfig(img, s.cfg.Labels.Prefix, opts...)
	}

	if err != nil {
		return nil, fmt.Errorf("error loading partition layout: %w", err)
	}

	if t.Type == layout.MBR && t.DiskSignature == 0 {
		t.DiskSignature = randomSignature()

		s.logger.Debug("generated disk signature", zap.String("signature", fmt.Sprintf("0x%08x", t.DiskSignature)))
	}

	return t, nil
}

// randomSignature returns a non-zero random MBR disk signature.
func randomSignature() uint32 {
	for {
		id := uuid.New()

		if sig := binary.LittleEndian.Uint32(id[:4]); sig != 0 {
			return sig
		}
	}
}
