// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package layout

import (
	"fmt"

	"github.com/google/uuid"
)

// FilesystemKind is the tag of the Filesystem union.
type FilesystemKind string

// Supported filesystem kinds.
const (
	FilesystemFAT  FilesystemKind = "fat"
	FilesystemExt4 FilesystemKind = "ext4"
	FilesystemXFS  FilesystemKind = "xfs"
	FilesystemSwap FilesystemKind = "swap"
	FilesystemRaw  FilesystemKind = "raw"
	FilesystemLVM  FilesystemKind = "lvm"
)

// FilesystemKinds lists all supported filesystem kinds.
var FilesystemKinds = []FilesystemKind{
	FilesystemFAT,
	FilesystemExt4,
	FilesystemXFS,
	FilesystemSwap,
	FilesystemRaw,
	FilesystemLVM,
}

// ParseFilesystemKind parses the filesystem kind.
func ParseFilesystemKind(s string) (FilesystemKind, error) {
	for _, kind := range FilesystemKinds {
		if string(kind) == s {
			return kind, nil
		}
	}

	return "", fmt.Errorf("unknown filesystem type %q", s)
}

// Filesystem is a tagged union over the supported filesystem kinds.
//
// Exactly the variant matching Kind might be set, XFS and Swap carry no attributes.
type Filesystem struct {
	FAT  *FATOptions
	Ext4 *Ext4Options
	Raw  *RawOptions
	LVM  *LVMOptions
	Kind FilesystemKind
}

// FATOptions are formatting hints for FAT filesystems.
type FATOptions struct {
	Heads           *uint8
	SectorsPerTrack *uint8
	VolumeID        *uint32
}

// HasGeometry returns true if both CHS geometry hints are set.
func (o *FATOptions) HasGeometry() bool {
	return o != nil && o.Heads != nil && o.SectorsPerTrack != nil
}

// Ext4Options are formatting hints for ext4 filesystems.
type Ext4Options struct {
	UUID *uuid.UUID
}

// RawOptions reference the content copied verbatim into the partition.
type RawOptions struct {
	ContentPath string
	ContentSize uint64
}

// LVMOptions describe a volume group living on the partition.
type LVMOptions struct {
	Name    string
	Volumes []LVMVolume
}

// LVMVolume is a logical volume inside the LVM volume group.
//
// Volumes can't nest: Filesystem.Kind is never FilesystemLVM.
type LVMVolume struct {
	Size       *uint64
	Name       string
	Filesystem Filesystem
}

// FAT builds a FAT filesystem.
func FAT(opts FATOptions) Filesystem {
	return Filesystem{Kind: FilesystemFAT, FAT: &opts}
}

// Ext4 builds an ext4 filesystem.
func Ext4(opts Ext4Options) Filesystem {
	return Filesystem{Kind: FilesystemExt4, Ext4: &opts}
}

// XFS builds an XFS filesystem.
func XFS() Filesystem {
	return Filesystem{Kind: FilesystemXFS}
}

// Swap builds a swap area.
func Swap() Filesystem {
	return Filesystem{Kind: FilesystemSwap}
}

// Raw builds a raw content partition.
func Raw(path string, size uint64) Filesystem {
	return Filesystem{Kind: FilesystemRaw, Raw: &RawOptions{ContentPath: path, ContentSize: size}}
}

// LVM builds an LVM physical volume.
func LVM(opts LVMOptions) Filesystem {
	return Filesystem{Kind: FilesystemLVM, LVM: &opts}
}

// String implements fmt.Stringer.
func (fs Filesystem) String() string {
	return string(fs.Kind)
}

// variants returns the number of variant payloads set.
func (fs Filesystem) variants() int {
	n := 0

	for _, set := range []bool{fs.FAT != nil, fs.Ext4 != nil, fs.Raw != nil, fs.LVM != nil} {
		if set {
			n++
		}
	}

	return n
}
