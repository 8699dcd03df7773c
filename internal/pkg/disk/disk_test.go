// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package disk_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siderolabs/go-pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/diskforge/internal/pkg/disk"
	"github.com/siderolabs/diskforge/pkg/logging"
	"github.com/siderolabs/diskforge/pkg/partitioning"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
	"github.com/siderolabs/diskforge/pkg/partitioning/table"
)

const (
	MiB = 1024 * 1024
	GiB = 1024 * MiB
)

func bootAndData() *layout.Table {
	return &layout.Table{
		Type:     layout.GPT,
		DiskGUID: uuid.MustParse("5b1f4b6e-6c5d-4d55-9e44-3f8f3a2b9d10"),
		Partitions: []layout.Partition{
			&layout.GPTPartition{
				Name: "BOOT",
				GUID: uuid.MustParse("a0d6bd53-0b5b-4cf4-8a77-2d1f7f0c2e01"),
				Common: layout.Placement{
					SizeBytes:  pointer.To[uint64](64 * MiB),
					Filesystem: layout.FAT(layout.FATOptions{}),
				},
			},
			&layout.GPTPartition{
				Name: "DATA",
				GUID: uuid.MustParse("a0d6bd53-0b5b-4cf4-8a77-2d1f7f0c2e02"),
				Common: layout.Placement{
					Filesystem: layout.XFS(),
				},
			},
		},
	}
}

type recorder struct {
	writes map[int64][]byte
}

func (r *recorder) WriteAt(p []byte, off int64) (int, error) {
	r.writes[off] = append([]byte(nil), p...)

	return len(p), nil
}

func TestWriteRegions(t *testing.T) {
	t.Parallel()

	regions := []partitioning.Region{
		{Name: "b", Offset: 1024, Data: []byte{2, 2}},
		{Name: "a", Offset: 0, Data: []byte{1}},
	}

	w := &recorder{writes: map[int64][]byte{}}

	require.NoError(t, disk.WriteRegions(w, 2048, regions))
	assert.Equal(t, map[int64][]byte{0: {1}, 1024: {2, 2}}, w.writes)

	assert.EqualError(t,
		disk.WriteRegions(w, 1025, regions),
		"region b@1024 (2 B) ends past the end of the disk (1025 bytes)",
	)

	assert.EqualError(t,
		disk.WriteRegions(w, 4096, append(regions, partitioning.Region{Name: "c", Offset: 1025, Data: []byte{3}})),
		"region c@1025 (1 B) overlaps b@1024 (2 B)",
	)
}

func TestWriteImage(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	path := filepath.Join(t.TempDir(), "disk.raw")

	require.NoError(t, disk.CreateImage(logging.Printf(logger), path, GiB))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, GiB, st.Size())

	result, err := table.Generate(bootAndData(), GiB/512)
	require.NoError(t, err)

	require.NoError(t, disk.WriteImage(path, result.Regions))
	require.NoError(t, disk.Verify(logger, path, result.Layout))

	// a layout which doesn't match what was written
	other := bootAndData()
	other.Partitions[1].(*layout.GPTPartition).GUID = uuid.MustParse("a0d6bd53-0b5b-4cf4-8a77-2d1f7f0c2e03")

	otherResult, err := table.Generate(other, GiB/512)
	require.NoError(t, err)

	err = disk.Verify(logger, path, otherResult.Layout)
	require.Error(t, err)
	assert.ErrorContains(t, err, "partition 1: GUID a0d6bd53-0b5b-4cf4-8a77-2d1f7f0c2e02, expected a0d6bd53-0b5b-4cf4-8a77-2d1f7f0c2e03")

	// the table doesn't fit into a smaller image
	small := filepath.Join(t.TempDir(), "small.raw")

	require.NoError(t, disk.CreateImage(logging.Printf(logger), small, 64*MiB))
	assert.ErrorContains(t, disk.WriteImage(small, result.Regions), "ends past the end of the disk")
}

func TestOpenImage(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	path := filepath.Join(t.TempDir(), "disk.raw")

	require.NoError(t, disk.CreateImage(logging.Printf(logger), path, GiB))

	dev, err := disk.Open(t.Context(), logger, path, time.Second)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, dev.Close())
	})

	assert.EqualValues(t, GiB, dev.Size())
	assert.False(t, dev.IsBlockDevice())
	assert.Zero(t, dev.SectorSize())

	info, err := dev.Probe()
	require.NoError(t, err)
	assert.Empty(t, info.Name)

	result, err := table.Generate(bootAndData(), dev.Size()/512)
	require.NoError(t, err)

	require.NoError(t, dev.Wipe())
	require.NoError(t, dev.Write(result.Regions))
	require.NoError(t, dev.RereadPartitionTable(t.Context(), time.Second))

	info, err = dev.Probe()
	require.NoError(t, err)
	assert.Equal(t, "gpt", info.Name)
	assert.Len(t, info.Parts, 2)
}

func TestPartitionPath(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		disk string
		n    int

		expected      string
		expectedError string
	}{
		{disk: "/dev/sda", n: 1, expected: "/dev/sda1"},
		{disk: "/dev/vdb", n: 12, expected: "/dev/vdb12"},
		{disk: "/dev/nvme0n1", n: 2, expected: "/dev/nvme0n1p2"},
		{disk: "/dev/loop7", n: 1, expected: "/dev/loop7p1"},
		{disk: "/dev/mmcblk0", n: 3, expected: "/dev/mmcblk0p3"},
		{disk: "/dev/sda", n: 0, expectedError: "invalid partition number 0"},
		{disk: "/dev/disk/by-partuuid/a0d6bd53-0b5b-4cf4-8a77-2d1f7f0c2e02", n: 1, expectedError: "disk name is already a partition"},
	} {
		t.Run(test.expected, func(t *testing.T) {
			t.Parallel()

			path, err := disk.PartitionPath(test.disk, test.n)
			if test.expectedError != "" {
				assert.EqualError(t, err, test.expectedError)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expected, path)
		})
	}

	paths, err := disk.PartitionPaths("/dev/loop0", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/loop0p1", "/dev/loop0p2", "/dev/loop0p3"}, paths)
}

func TestWaitForPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	late := filepath.Join(dir, "late")

	require.NoError(t, os.WriteFile(present, nil, 0o644))

	go func() {
		time.Sleep(200 * time.Millisecond)

		os.WriteFile(late, nil, 0o644) //nolint:errcheck
	}()

	require.NoError(t, disk.WaitForPaths(t.Context(), 10*time.Second, present, late))

	assert.Error(t, disk.WaitForPaths(t.Context(), 300*time.Millisecond, filepath.Join(dir, "missing")))
}
