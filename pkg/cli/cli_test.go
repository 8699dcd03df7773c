// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/siderolabs/go-pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/diskforge/pkg/cli"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
	"github.com/siderolabs/diskforge/pkg/partitioning/resolve"
)

func TestWithContext(t *testing.T) {
	t.Parallel()

	errExpected := errors.New("done")

	err := cli.WithContext(t.Context(), func(ctx context.Context) error {
		require.NoError(t, ctx.Err())

		return errExpected
	})
	assert.ErrorIs(t, err, errExpected)
}

func TestRenderLayout(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name  string
		table *layout.Table

		expected []string
	}{
		{
			name: "gpt",
			table: &layout.Table{
				Type: layout.GPT,
				Partitions: []layout.Partition{
					&layout.GPTPartition{
						Name: "EFI",
						GUID: uuid.New(),
						Common: layout.Placement{
							SizeBytes:  pointer.To[uint64](100 * 1024 * 1024),
							Filesystem: layout.FAT(layout.FATOptions{}),
							MountPoint: "/boot/efi",
							Bootable:   true,
						},
					},
					&layout.GPTPartition{
						Name: "ROOT",
						GUID: uuid.New(),
						Common: layout.Placement{
							Filesystem: layout.Ext4(layout.Ext4Options{}),
							MountPoint: "/",
						},
					},
				},
			},
			expected: []string{
				"gpt: 2097152 sectors of 512 bytes (1.0 GiB), usable 34-2097118, alignment 2048 sectors",
				"0   EFI *",
				"2048",
				"206847",
				"100 MiB",
				"EFI System",
				"1   ROOT",
				"Linux filesystem",
				"backup GPT header",
			},
		},
		{
			name: "mbr",
			table: &layout.Table{
				Type: layout.MBR,
				Partitions: []layout.Partition{
					&layout.MBRPartition{
						TypeCode: 0x83,
						Common: layout.Placement{
							Filesystem: layout.Swap(),
						},
					},
				},
			},
			expected: []string{
				"mbr: 2097152 sectors",
				"0x83",
				"master boot record",
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			l, err := resolve.Resolve(test.table, 2097152)
			require.NoError(t, err)

			var out strings.Builder

			require.NoError(t, cli.RenderLayout(l, &out))

			for _, expected := range test.expected {
				assert.Contains(t, out.String(), expected)
			}
		})
	}
}

func TestRenderPartitions(t *testing.T) {
	t.Parallel()

	var out strings.Builder

	require.NoError(t, cli.RenderPartitions([]cli.ProvisionedPartition{
		{Path: "/dev/loop0p1", Filesystem: "fat", MountPoint: "/boot/efi"},
		{Path: "/dev/loop0p2", Filesystem: "lvm", Volumes: []string{"/dev/vg/root", "/dev/vg/data"}},
	}, &out))

	assert.Equal(t,
		"DEVICE         FS    MOUNT       VOLUMES\n"+
			"/dev/loop0p1   fat   /boot/efi   -\n"+
			"/dev/loop0p2   lvm   -           /dev/vg/root,/dev/vg/data\n",
		out.String())

	out.Reset()

	cli.RenderWarnings([]string{"one", "two"}, &out)
	assert.Equal(t, "WARNING: one\nWARNING: two\n", out.String())
}
