// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package config loads the diskforge tool configuration.
//
// The configuration is a base TOML file with optional drop-ins in the
// diskforge.d directory next to it, merged in lexical order on top of the defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math/bits"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"

	"github.com/siderolabs/diskforge/pkg/logging"
	"github.com/siderolabs/diskforge/pkg/partitioning/gpt"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
	"github.com/siderolabs/diskforge/pkg/partitioning/mbr"
	"github.com/siderolabs/diskforge/pkg/partitioning/resolve"
	"github.com/siderolabs/diskforge/pkg/partitioning/table"
)

// DefaultPath is the location of the base configuration file.
const DefaultPath = "/etc/diskforge/diskforge.toml"

// DropInDir is the name of the drop-in directory next to the base file.
const DropInDir = "diskforge.d"

// Config is the tool configuration.
type Config struct {
	Disk   Disk   `toml:"disk"`
	MBR    MBR    `toml:"mbr"`
	Device Device `toml:"device"`
	Log    Log    `toml:"log"`
	Labels Labels `toml:"labels"`
}

// Disk configures the layout resolution.
type Disk struct {
	SectorSize Size  `toml:"sector-size"`
	Alignment  Size  `toml:"alignment"`
	// HybridMBR mirrors bootable partitions into the protective MBR, off unless set.
	HybridMBR *bool `toml:"hybrid-mbr,omitempty"`
}

// MBR configures the CHS geometry of MBR entries.
type MBR struct {
	Heads           uint8 `toml:"heads"`
	SectorsPerTrack uint8 `toml:"sectors-per-track"`
}

// Device configures the block device operations.
type Device struct {
	LockTimeout   Duration `toml:"lock-timeout"`
	RereadTimeout Duration `toml:"reread-timeout"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Labels configures the OCI image label loader.
type Labels struct {
	Prefix string `toml:"prefix"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Disk: Disk{
			SectorSize: Size(resolve.DefaultSectorSize),
			Alignment:  Size(resolve.DefaultAlignment * resolve.DefaultSectorSize),
		},
		MBR: MBR{
			Heads:           mbr.DefaultGeometry.Heads,
			SectorsPerTrack: mbr.DefaultGeometry.SectorsPerTrack,
		},
		Device: Device{
			LockTimeout:   Duration(time.Minute),
			RereadTimeout: Duration(30 * time.Second),
		},
		Log: Log{
			Level: "info",
		},
		Labels: Labels{
			Prefix: layout.DefaultLabelPrefix,
		},
	}
}

// Sources lists the files the configuration was merged from with their sha256 checksums.
type Sources struct {
	Checksums map[string][]byte
	Merged    []byte
	Files     []string
}

// Load reads the base file and its drop-ins.
//
// A missing base file is not an error, the drop-ins are still applied.
func Load(path string) (*Config, *Sources, error) {
	var files []string

	switch _, err := os.Stat(path); {
	case err == nil:
		files = append(files, path)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, nil, err
	}

	dropIns, err := filepath.Glob(filepath.Join(filepath.Dir(path), DropInDir, "*.toml"))
	if err != nil {
		return nil, nil, err
	}

	slices.Sort(dropIns)

	files = append(files, dropIns...)

	cfg := Default()
	sources := &Sources{Files: files}

	if len(files) > 0 {
		sources.Merged, sources.Checksums, err = Merge(files)
		if err != nil {
			return nil, nil, err
		}

		if err = toml.NewDecoder(bytes.NewReader(sources.Merged)).DisallowUnknownFields().Decode(cfg); err != nil {
			return nil, nil, fmt.Errorf("error decoding configuration: %w", err)
		}
	}

	if err = cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, sources, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var result *multierror.Error

	if sectorSize := uint64(c.Disk.SectorSize); sectorSize < 512 || bits.OnesCount64(sectorSize) != 1 {
		result = multierror.Append(result, fmt.Errorf("disk.sector-size: %d is not a power of two >= 512", sectorSize))
	} else if c.Disk.Alignment == 0 || uint64(c.Disk.Alignment)%sectorSize != 0 {
		result = multierror.Append(result, fmt.Errorf("disk.alignment: %s is not a multiple of the sector size", c.Disk.Alignment))
	}

	if err := c.Geometry().Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("mbr: %w", err))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("log.level: %w", err))
	}

	if c.Labels.Prefix == "" {
		result = multierror.Append(result, errors.New("labels.prefix: should not be empty"))
	}

	if c.Device.LockTimeout <= 0 || c.Device.RereadTimeout <= 0 {
		result = multierror.Append(result, errors.New("device: timeouts should be positive"))
	}

	return result.ErrorOrNil()
}

// Geometry returns the MBR geometry.
func (c *Config) Geometry() mbr.Geometry {
	return mbr.Geometry{Heads: c.MBR.Heads, SectorsPerTrack: c.MBR.SectorsPerTrack}
}

// TableOptions returns the partition table pipeline options.
//
// A non-zero sectorSize (reported by the device) overrides the configured one.
func (c *Config) TableOptions(sectorSize uint64) []table.Option {
	if sectorSize == 0 {
		sectorSize = uint64(c.Disk.SectorSize)
	}

	gptOpts := []gpt.Option{gpt.WithGeometry(c.Geometry())}

	if c.Disk.HybridMBR != nil {
		gptOpts = append(gptOpts, gpt.WithHybridMBR(*c.Disk.HybridMBR))
	}

	return []table.Option{
		table.WithResolveOptions(
			resolve.WithSectorSize(sectorSize),
			resolve.WithAlignment(max(uint64(c.Disk.Alignment)/sectorSize, 1)),
		),
		table.WithGPTOptions(gptOpts...),
		table.WithMBROptions(mbr.WithGeometry(c.Geometry())),
	}
}

// Size is a byte size written as a human readable string, e.g. "1MiB".
type Size uint64

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(text []byte) error {
	v, err := humanize.ParseBytes(string(text))
	if err != nil {
		return err
	}

	*s = Size(v)

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(humanize.IBytes(uint64(s))), nil
}

// String implements fmt.Stringer.
func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}

// Duration is a time.Duration written as a string, e.g. "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(v)

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
