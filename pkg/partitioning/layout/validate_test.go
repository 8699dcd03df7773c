// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package layout_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/siderolabs/go-pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/diskforge/pkg/partitioning"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
)

var (
	diskGUID = uuid.MustParse("8c3d8a1e-1d5f-4c55-9b4e-3b7a0c2f6e11")
	partA    = uuid.MustParse("3c047ff8-e35c-4918-a061-b4c1e5a291e5")
	partB    = uuid.MustParse("e8516f6b-f03e-45ae-8d9d-9958456ee7e4")
)

func gptPartition(id uuid.UUID, fs layout.Filesystem) *layout.GPTPartition {
	return &layout.GPTPartition{
		GUID:   id,
		Common: layout.Placement{Filesystem: fs},
	}
}

func mbrPartition(code uint8, fs layout.Filesystem) *layout.MBRPartition {
	return &layout.MBRPartition{
		TypeCode: code,
		Common:   layout.Placement{Filesystem: fs},
	}
}

//nolint:maintidx
func TestValidate(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name  string
		table *layout.Table

		expectedErrors   []error
		expectedMessage  string
		expectedWarnings []string
	}{
		{
			name: "valid gpt",
			table: &layout.Table{
				Type:     layout.GPT,
				DiskGUID: diskGUID,
				Partitions: []layout.Partition{
					&layout.GPTPartition{
						GUID:             partA,
						Name:             "EFI",
						PlatformRequired: true,
						Common: layout.Placement{
							SizeBytes:  pointer.To[uint64](100 << 20),
							MountPoint: "/boot/efi",
							Filesystem: layout.FAT(layout.FATOptions{Heads: pointer.To[uint8](64), SectorsPerTrack: pointer.To[uint8](32)}),
							Bootable:   true,
						},
					},
					&layout.GPTPartition{
						GUID: partB,
						Common: layout.Placement{
							MountPoint: "/",
							Filesystem: layout.LVM(layout.LVMOptions{
								Name: "vg0",
								Volumes: []layout.LVMVolume{
									{Name: "root", Size: pointer.To[uint64](1 << 30), Filesystem: layout.XFS()},
									{Name: "swap", Filesystem: layout.Swap()},
								},
							}),
						},
					},
				},
			},
			expectedWarnings: []string{`partition 1: mount point "/" is ignored for lvm`},
		},
		{
			name: "valid mbr",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					mbrPartition(0x0c, layout.FAT(layout.FATOptions{})),
					mbrPartition(0x83, layout.Ext4(layout.Ext4Options{})),
				},
			},
		},
		{
			name: "too many mbr partitions",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					mbrPartition(0x83, layout.Ext4(layout.Ext4Options{})),
					mbrPartition(0x83, layout.Ext4(layout.Ext4Options{})),
					mbrPartition(0x83, layout.Ext4(layout.Ext4Options{})),
					mbrPartition(0x83, layout.Ext4(layout.Ext4Options{})),
					mbrPartition(0x83, layout.Ext4(layout.Ext4Options{})),
				},
			},
			expectedErrors:  []error{partitioning.ErrTooManyEntries},
			expectedMessage: "1 error occurred:\n\t* table partitions: too many partition entries: 5 partitions, MBR holds at most 4\n\n",
		},
		{
			name: "missing guids",
			table: &layout.Table{
				Type: layout.GPT,
				Partitions: []layout.Partition{
					gptPartition(uuid.Nil, layout.XFS()),
				},
			},
			expectedErrors: []error{partitioning.ErrValidation},
			expectedMessage: "2 errors occurred:\n" +
				"\t* table disk GUID: invalid partition table specification: must be set\n" +
				"\t* partition 0 uuid: invalid partition table specification: must be set\n\n",
		},
		{
			name: "duplicate guid",
			table: &layout.Table{
				Type:     layout.GPT,
				DiskGUID: diskGUID,
				Partitions: []layout.Partition{
					gptPartition(partA, layout.XFS()),
					gptPartition(partA, layout.XFS()),
				},
			},
			expectedErrors:  []error{partitioning.ErrValidation},
			expectedMessage: "1 error occurred:\n\t* partition 1 uuid: invalid partition table specification: 3c047ff8-e35c-4918-a061-b4c1e5a291e5 is already used by partition 0\n\n",
		},
		{
			name: "variant mismatch",
			table: &layout.Table{
				Type:     layout.GPT,
				DiskGUID: diskGUID,
				Partitions: []layout.Partition{
					mbrPartition(0x83, layout.XFS()),
				},
			},
			expectedErrors:  []error{partitioning.ErrValidation},
			expectedMessage: "1 error occurred:\n\t* partition 0 type: invalid partition table specification: mbr partition in a gpt table\n\n",
		},
		{
			name: "zero mbr type code",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					mbrPartition(0, layout.XFS()),
				},
			},
			expectedErrors: []error{partitioning.ErrValidation},
		},
		{
			name: "mutually exclusive filesystem variants",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					mbrPartition(0x83, layout.Filesystem{
						Kind: layout.FilesystemExt4,
						Ext4: &layout.Ext4Options{},
						FAT:  &layout.FATOptions{},
					}),
				},
			},
			expectedErrors:  []error{partitioning.ErrValidation},
			expectedMessage: "1 error occurred:\n\t* partition 0 filesystem: invalid partition table specification: filesystem variants are mutually exclusive\n\n",
		},
		{
			name: "mismatched filesystem options",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					mbrPartition(0x83, layout.Filesystem{
						Kind: layout.FilesystemXFS,
						Ext4: &layout.Ext4Options{},
					}),
				},
			},
			expectedErrors: []error{partitioning.ErrValidation},
		},
		{
			name: "unknown filesystem",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					mbrPartition(0x83, layout.Filesystem{Kind: "btrfs"}),
				},
			},
			expectedErrors:  []error{partitioning.ErrValidation},
			expectedMessage: "1 error occurred:\n\t* partition 0 filesystem: invalid partition table specification: unknown filesystem type \"btrfs\"\n\n",
		},
		{
			name: "fat geometry out of range",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					mbrPartition(0x0c, layout.FAT(layout.FATOptions{SectorsPerTrack: pointer.To[uint8](64)})),
				},
			},
			expectedErrors: []error{partitioning.ErrValidation},
		},
		{
			name: "raw without content",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					mbrPartition(0x83, layout.Filesystem{Kind: layout.FilesystemRaw}),
				},
			},
			expectedErrors: []error{partitioning.ErrValidation},
		},
		{
			name: "raw content larger than size",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					&layout.MBRPartition{
						TypeCode: 0x83,
						Common: layout.Placement{
							SizeBytes:  pointer.To[uint64](512),
							Filesystem: layout.Raw("/tmp/content", 1024),
						},
					},
				},
			},
			expectedErrors:  []error{partitioning.ErrValidation},
			expectedMessage: "1 error occurred:\n\t* partition 0 size: invalid partition table specification: 512 bytes can't hold 1024 bytes of content\n\n",
		},
		{
			name: "zero size",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					&layout.MBRPartition{
						TypeCode: 0x83,
						Common: layout.Placement{
							SizeBytes:  pointer.To[uint64](0),
							Filesystem: layout.XFS(),
						},
					},
				},
			},
			expectedErrors: []error{partitioning.ErrValidation},
		},
		{
			name: "nested lvm and two unsized volumes",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					mbrPartition(0x8e, layout.LVM(layout.LVMOptions{
						Volumes: []layout.LVMVolume{
							{Name: "a", Filesystem: layout.LVM(layout.LVMOptions{})},
							{Name: "b", Filesystem: layout.XFS()},
							{Name: "c", Filesystem: layout.Ext4(layout.Ext4Options{})},
						},
					})),
				},
			},
			expectedErrors: []error{partitioning.ErrValidation},
			expectedMessage: "2 errors occurred:\n" +
				"\t* partition 0 filesystem.volumes[0]: invalid partition table specification: LVM volumes can't be nested\n" +
				"\t* partition 0 filesystem.volumes: invalid partition table specification: only one volume may omit the size\n\n",
		},
		{
			name: "attribute out of range",
			table: &layout.Table{
				Type:     layout.GPT,
				DiskGUID: diskGUID,
				Partitions: []layout.Partition{
					&layout.GPTPartition{
						GUID:       partA,
						Attributes: []uint{2, 64},
						Common:     layout.Placement{Filesystem: layout.XFS()},
					},
				},
			},
			expectedErrors: []error{partitioning.ErrValidation},
		},
		{
			name: "mount points",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					&layout.MBRPartition{TypeCode: 0x83, Common: layout.Placement{MountPoint: "var", Filesystem: layout.XFS()}},
					&layout.MBRPartition{TypeCode: 0x83, Common: layout.Placement{MountPoint: "/var", Filesystem: layout.XFS()}},
					&layout.MBRPartition{TypeCode: 0x83, Common: layout.Placement{MountPoint: "/var/", Filesystem: layout.XFS()}},
				},
			},
			expectedErrors: []error{partitioning.ErrValidation},
			expectedMessage: "2 errors occurred:\n" +
				"\t* partition 0 mount point: invalid partition table specification: \"var\" is not an absolute path\n" +
				"\t* partition 2 mount point: invalid partition table specification: \"/var/\" is already used by partition 1\n\n",
		},
		{
			name: "multiple active mbr partitions",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					&layout.MBRPartition{TypeCode: 0x0c, Common: layout.Placement{Bootable: true, Filesystem: layout.FAT(layout.FATOptions{})}},
					&layout.MBRPartition{TypeCode: 0x83, Common: layout.Placement{Bootable: true, Filesystem: layout.XFS()}},
				},
			},
			expectedWarnings: []string{"2 partitions are marked bootable, firmware usually boots the first one"},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			warnings, err := test.table.Validate()

			assert.Equal(t, test.expectedWarnings, warnings)

			if len(test.expectedErrors) == 0 {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)

			for _, expected := range test.expectedErrors {
				assert.ErrorIs(t, err, expected)
			}

			if test.expectedMessage != "" {
				assert.Equal(t, test.expectedMessage, err.Error())
			}
		})
	}
}

func TestAttributeMask(t *testing.T) {
	t.Parallel()

	p := &layout.GPTPartition{
		PlatformRequired: true,
		Attributes:       []uint{layout.AttributeLegacyBIOSBoot, layout.AttributeNoAutomount},
	}

	assert.Equal(t, uint64(1)|uint64(1)<<2|uint64(1)<<63, p.AttributeMask())
}
