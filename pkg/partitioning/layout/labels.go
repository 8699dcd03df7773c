// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/siderolabs/go-pointer"
)

// DefaultLabelPrefix is the prefix of the image config labels describing the layout.
const DefaultLabelPrefix = "dev.siderolabs.diskforge"

// FromImageConfig builds the table from the labels of the OCI image config.
func FromImageConfig(img *ocispec.Image, prefix string, opts ...DocumentOption) (*Table, error) {
	if img == nil || len(img.Config.Labels) == 0 {
		return nil, errors.New("image config has no labels")
	}

	return FromLabels(img.Config.Labels, prefix, opts...)
}

// FromLabels builds the table from the image labels.
//
// The whole document might be stored in the <prefix>.layout label, otherwise the table type comes
// from <prefix>.partitions_layout, the ordered partition names from <prefix>.partitions (a JSON array),
// and every partition is described by the <prefix>.partition.<name>.* labels.
func FromLabels(labels map[string]string, prefix string, opts ...DocumentOption) (*Table, error) {
	if prefix == "" {
		prefix = DefaultLabelPrefix
	}

	if raw, ok := labels[prefix+".layout"]; ok {
		return ParseDocument(strings.NewReader(raw), opts...)
	}

	doc, err := documentFromLabels(labels, prefix)
	if err != nil {
		return nil, err
	}

	return doc.Table(opts...)
}

type labelReader struct {
	labels map[string]string
	prefix string
	errs   []error
}

func (r *labelReader) get(key string) (string, bool) {
	v, ok := r.labels[r.prefix+"."+key]

	return v, ok
}

func (r *labelReader) require(key string) string {
	v, ok := r.get(key)
	if !ok {
		r.errs = append(r.errs, fmt.Errorf("missing label %q", r.prefix+"."+key))
	}

	return v
}

func (r *labelReader) parse(key string, parse func(string) error) {
	v, ok := r.get(key)
	if !ok {
		return
	}

	if err := parse(v); err != nil {
		r.errs = append(r.errs, fmt.Errorf("label %q: %w", r.prefix+"."+key, err))
	}
}

//nolint:gocyclo
func documentFromLabels(labels map[string]string, prefix string) (*Document, error) {
	r := &labelReader{labels: labels, prefix: prefix}

	doc := &Document{
		Type: r.require("partitions_layout"),
	}

	var names []string

	r.parse("partitions", func(s string) error {
		return json.Unmarshal([]byte(s), &names)
	})

	if _, ok := r.get("partitions"); !ok {
		r.require("partitions")
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}

	tableType, err := ParseTableType(doc.Type)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		key := func(k string) string {
			return "partition." + name + "." + k
		}

		pd := PartitionDocument{
			MountPoint: r.require(key("mount_point")),
			Filesystem: &FilesystemDocument{
				Type: r.require(key("fs")),
			},
		}

		r.parse(key("size_mb"), func(s string) error {
			mb, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return err
			}

			pd.Size = Bytes(mb << 20)

			return nil
		})

		r.parse(key("flags.bootable"), func(s string) (err error) {
			pd.Bootable, err = strconv.ParseBool(s)

			return err
		})

		switch tableType {
		case GPT:
			pd.Name = name
			pd.UUID = r.require(key("partition_uuid"))

			r.parse(key("flags.required"), func(s string) (err error) {
				pd.PlatformRequired, err = strconv.ParseBool(s)

				return err
			})
		case MBR:
			r.parse(key("type"), func(s string) error {
				code, err := strconv.ParseUint(s, 0, 8)
				if err != nil {
					return err
				}

				pd.Type = pointer.To(Hex32(code))

				return nil
			})

			if pd.Type == nil {
				r.require(key("type"))
			}
		}

		fs := pd.Filesystem

		r.parse(key("ext4.uuid"), func(s string) error {
			fs.UUID = s

			return nil
		})

		r.parse(key("fat.vol_id"), func(s string) error {
			id, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
			if err != nil {
				return err
			}

			fs.VolumeID = pointer.To(Hex32(id))

			return nil
		})

		r.parse(key("fat.heads"), func(s string) error {
			heads, err := strconv.ParseUint(s, 10, 8)
			if err != nil {
				return err
			}

			fs.Heads = pointer.To(uint8(heads))

			return nil
		})

		r.parse(key("fat.sectors_per_track"), func(s string) error {
			spt, err := strconv.ParseUint(s, 10, 8)
			if err != nil {
				return err
			}

			fs.SectorsPerTrack = pointer.To(uint8(spt))

			return nil
		})

		doc.Partitions = append(doc.Partitions, pd)
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}

	return doc, nil
}
