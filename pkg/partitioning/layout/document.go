// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/siderolabs/go-pointer"
	"gopkg.in/yaml.v3"
)

// Document is the configuration document describing a partition table.
//
// JSON documents are accepted as well, as JSON is a subset of YAML.
type Document struct {
	DiskID     *Hex32              `yaml:"id,omitempty"`
	Type       string              `yaml:"type"`
	UUID       string              `yaml:"uuid,omitempty"`
	Partitions []PartitionDocument `yaml:"partitions"`
}

// PartitionDocument is a partition in the Document.
//
// GPT partitions use uuid, name, attributes and platform-required, MBR partitions use type.
type PartitionDocument struct {
	Filesystem       *FilesystemDocument `yaml:"fs"`
	OffsetLBA        *uint64             `yaml:"offset_lba,omitempty"`
	Type             *Hex32              `yaml:"type,omitempty"`
	UUID             string              `yaml:"uuid,omitempty"`
	Name             string              `yaml:"name,omitempty"`
	MountPoint       string              `yaml:"mnt,omitempty"`
	Size             ByteSize            `yaml:"size_bytes,omitempty"`
	Attributes       []uint              `yaml:"attributes,omitempty"`
	Bootable         bool                `yaml:"bootable,omitempty"`
	PlatformRequired bool                `yaml:"platform-required,omitempty"`
}

// FilesystemDocument is a filesystem in the Document, keyed by type.
type FilesystemDocument struct {
	VolumeID        *Hex32           `yaml:"volume-id,omitempty"`
	Heads           *uint8           `yaml:"heads,omitempty"`
	SectorsPerTrack *uint8           `yaml:"sectors-per-track,omitempty"`
	Type            string           `yaml:"type"`
	UUID            string           `yaml:"uuid,omitempty"`
	Name            string           `yaml:"name,omitempty"`
	Content         string           `yaml:"content,omitempty"`
	Volumes         []VolumeDocument `yaml:"volumes,omitempty"`
}

// VolumeDocument is an LVM logical volume in the Document.
type VolumeDocument struct {
	Filesystem *FilesystemDocument `yaml:"fs"`
	Name       string              `yaml:"name,omitempty"`
	Size       ByteSize            `yaml:"size,omitempty"`
}

// DocumentOption controls the document conversion.
type DocumentOption func(*DocumentOptions)

// DocumentOptions for the document conversion.
type DocumentOptions struct {
	// BaseDir is used to resolve relative raw content paths.
	BaseDir string
	// GenerateGUIDs fills in missing disk and partition GUIDs with random ones.
	GenerateGUIDs bool
}

// WithBaseDir sets the directory relative raw content paths are resolved against.
func WithBaseDir(dir string) DocumentOption {
	return func(o *DocumentOptions) {
		o.BaseDir = dir
	}
}

// WithGenerateGUIDs generates random GUIDs for GPT objects which don't specify one.
func WithGenerateGUIDs(generate bool) DocumentOption {
	return func(o *DocumentOptions) {
		o.GenerateGUIDs = generate
	}
}

// LoadDocument reads the document from the file.
//
// Relative raw content paths are resolved against the directory of the document.
func LoadDocument(path string, opts ...DocumentOption) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close() //nolint:errcheck

	return ParseDocument(f, append([]DocumentOption{WithBaseDir(filepath.Dir(path))}, opts...)...)
}

// ParseDocument decodes the document and converts it into the Table.
//
// ParseDocument doesn't validate the table, see Table.Validate.
func ParseDocument(r io.Reader, opts ...DocumentOption) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document

	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("partition layout document is empty")
		}

		return nil, fmt.Errorf("error decoding partition layout: %w", err)
	}

	return doc.Table(opts...)
}

// Table converts the document into the Table.
//
//nolint:gocyclo,cyclop
func (doc *Document) Table(opts ...DocumentOption) (*Table, error) {
	var options DocumentOptions

	for _, o := range opts {
		o(&options)
	}

	tableType, err := ParseTableType(doc.Type)
	if err != nil {
		return nil, err
	}

	var result *multierror.Error

	table := &Table{
		Type:       tableType,
		Partitions: make([]Partition, 0, len(doc.Partitions)),
	}

	if doc.DiskID != nil {
		if tableType != MBR {
			result = multierror.Append(result, errors.New("id: disk signature is only supported for MBR tables"))
		}

		table.DiskSignature = uint32(*doc.DiskID)
	}

	switch {
	case doc.UUID != "":
		if tableType != GPT {
			result = multierror.Append(result, errors.New("uuid: disk GUID is only supported for GPT tables"))
		}

		if table.DiskGUID, err = uuid.Parse(doc.UUID); err != nil {
			result = multierror.Append(result, fmt.Errorf("uuid: %w", err))
		}
	case tableType == GPT && options.GenerateGUIDs:
		table.DiskGUID = uuid.New()
	}

	for i, pd := range doc.Partitions {
		field := func(name string) string {
			return fmt.Sprintf("partitions[%d].%s", i, name)
		}

		if pd.Filesystem == nil {
			result = multierror.Append(result, fmt.Errorf("%s: filesystem is required", field("fs")))

			continue
		}

		fs, err := pd.Filesystem.filesystem(options.BaseDir)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", field("fs"), err))

			continue
		}

		placement := Placement{
			StartLBA:   pd.OffsetLBA,
			SizeBytes:  pd.Size.Pointer(),
			MountPoint: pd.MountPoint,
			Filesystem: fs,
			Bootable:   pd.Bootable,
		}

		switch tableType {
		case GPT:
			if pd.Type != nil {
				result = multierror.Append(result, fmt.Errorf("%s: type code is only supported for MBR partitions", field("type")))
			}

			part := &GPTPartition{
				Name:             pd.Name,
				Attributes:       pd.Attributes,
				PlatformRequired: pd.PlatformRequired,
				Common:           placement,
			}

			switch {
			case pd.UUID != "":
				if part.GUID, err = uuid.Parse(pd.UUID); err != nil {
					result = multierror.Append(result, fmt.Errorf("%s: %w", field("uuid"), err))
				}
			case options.GenerateGUIDs:
				part.GUID = uuid.New()
			default:
				result = multierror.Append(result, fmt.Errorf("%s: partition GUID is required", field("uuid")))
			}

			table.Partitions = append(table.Partitions, part)
		case MBR:
			if pd.UUID != "" || pd.Name != "" || pd.Attributes != nil || pd.PlatformRequired {
				result = multierror.Append(result, fmt.Errorf("partitions[%d]: uuid, name, attributes and platform-required are only supported for GPT partitions", i))
			}

			if pd.Type == nil {
				result = multierror.Append(result, fmt.Errorf("%s: partition type code is required", field("type")))

				continue
			}

			if *pd.Type > 0xff {
				result = multierror.Append(result, fmt.Errorf("%s: 0x%x doesn't fit into a byte", field("type"), uint32(*pd.Type)))

				continue
			}

			table.Partitions = append(table.Partitions, &MBRPartition{
				TypeCode: uint8(*pd.Type),
				Common:   placement,
			})
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return table, nil
}

//nolint:gocyclo
func (fd *FilesystemDocument) filesystem(baseDir string) (Filesystem, error) {
	kind, err := ParseFilesystemKind(fd.Type)
	if err != nil {
		return Filesystem{}, err
	}

	unexpected := func(set bool, key string) error {
		if set {
			return fmt.Errorf("%q is not supported for %s filesystem", key, kind)
		}

		return nil
	}

	if err = errors.Join(
		unexpected(kind != FilesystemFAT && (fd.VolumeID != nil || fd.Heads != nil || fd.SectorsPerTrack != nil), "volume-id/heads/sectors-per-track"),
		unexpected(kind != FilesystemExt4 && fd.UUID != "", "uuid"),
		unexpected(kind != FilesystemLVM && (fd.Name != "" || fd.Volumes != nil), "name/volumes"),
		unexpected(kind != FilesystemRaw && fd.Content != "", "content"),
	); err != nil {
		return Filesystem{}, err
	}

	switch kind {
	case FilesystemFAT:
		opts := FATOptions{
			Heads:           fd.Heads,
			SectorsPerTrack: fd.SectorsPerTrack,
		}

		if fd.VolumeID != nil {
			opts.VolumeID = pointer.To(uint32(*fd.VolumeID))
		}

		return FAT(opts), nil
	case FilesystemExt4:
		var opts Ext4Options

		if fd.UUID != "" {
			id, err := uuid.Parse(fd.UUID)
			if err != nil {
				return Filesystem{}, fmt.Errorf("uuid: %w", err)
			}

			opts.UUID = &id
		}

		return Ext4(opts), nil
	case FilesystemXFS:
		return XFS(), nil
	case FilesystemSwap:
		return Swap(), nil
	case FilesystemRaw:
		if fd.Content == "" {
			return Filesystem{}, errors.New("raw filesystem requires content")
		}

		path := fd.Content
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}

		st, err := os.Stat(path)
		if err != nil {
			return Filesystem{}, fmt.Errorf("error reading raw content: %w", err)
		}

		if !st.Mode().IsRegular() {
			return Filesystem{}, fmt.Errorf("raw content %q is not a regular file", path)
		}

		return Raw(path, uint64(st.Size())), nil
	case FilesystemLVM:
		opts := LVMOptions{Name: fd.Name}

		for j, vd := range fd.Volumes {
			if vd.Filesystem == nil {
				return Filesystem{}, fmt.Errorf("volumes[%d].fs: filesystem is required", j)
			}

			if vd.Filesystem.Type == string(FilesystemLVM) {
				return Filesystem{}, fmt.Errorf("volumes[%d].fs: LVM volumes can't be nested", j)
			}

			vfs, err := vd.Filesystem.filesystem(baseDir)
			if err != nil {
				return Filesystem{}, fmt.Errorf("volumes[%d].fs: %w", j, err)
			}

			opts.Volumes = append(opts.Volumes, LVMVolume{
				Name:       vd.Name,
				Size:       vd.Size.Pointer(),
				Filesystem: vfs,
			})
		}

		return LVM(opts), nil
	}

	return Filesystem{}, fmt.Errorf("unknown filesystem type %q", fd.Type)
}

// NewDocument converts the table back into the document form.
func NewDocument(t *Table) *Document {
	doc := &Document{
		Type:       t.Type.String(),
		Partitions: make([]PartitionDocument, 0, len(t.Partitions)),
	}

	if t.Type == GPT && t.DiskGUID != uuid.Nil {
		doc.UUID = t.DiskGUID.String()
	}

	if t.Type == MBR && t.DiskSignature != 0 {
		doc.DiskID = pointer.To(Hex32(t.DiskSignature))
	}

	for _, p := range t.Partitions {
		placement := p.Placement()

		pd := PartitionDocument{
			Filesystem: newFilesystemDocument(placement.Filesystem),
			OffsetLBA:  placement.StartLBA,
			MountPoint: placement.MountPoint,
			Bootable:   placement.Bootable,
		}

		if placement.SizeBytes != nil {
			pd.Size = Bytes(*placement.SizeBytes)
		}

		switch p := p.(type) {
		case *GPTPartition:
			pd.UUID = p.GUID.String()
			pd.Name = p.Name
			pd.Attributes = p.Attributes
			pd.PlatformRequired = p.PlatformRequired
		case *MBRPartition:
			pd.Type = pointer.To(Hex32(p.TypeCode))
		}

		doc.Partitions = append(doc.Partitions, pd)
	}

	return doc
}

func newFilesystemDocument(fs Filesystem) *FilesystemDocument {
	fd := &FilesystemDocument{Type: string(fs.Kind)}

	switch {
	case fs.FAT != nil:
		fd.Heads = fs.FAT.Heads
		fd.SectorsPerTrack = fs.FAT.SectorsPerTrack

		if fs.FAT.VolumeID != nil {
			fd.VolumeID = pointer.To(Hex32(*fs.FAT.VolumeID))
		}
	case fs.Ext4 != nil:
		if fs.Ext4.UUID != nil {
			fd.UUID = fs.Ext4.UUID.String()
		}
	case fs.Raw != nil:
		fd.Content = fs.Raw.ContentPath
	case fs.LVM != nil:
		fd.Name = fs.LVM.Name

		for _, vol := range fs.LVM.Volumes {
			vd := VolumeDocument{
				Name:       vol.Name,
				Filesystem: newFilesystemDocument(vol.Filesystem),
			}

			if vol.Size != nil {
				vd.Size = Bytes(*vol.Size)
			}

			fd.Volumes = append(fd.Volumes, vd)
		}
	}

	return fd
}

// Marshal encodes the document as YAML.
func (doc *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(doc); err != nil {
		return nil, err
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
