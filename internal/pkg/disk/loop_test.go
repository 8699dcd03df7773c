// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package disk_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/diskforge/internal/pkg/disk"
	"github.com/siderolabs/diskforge/pkg/logging"
	"github.com/siderolabs/diskforge/pkg/partitioning/table"
)

// Loop device tests cannot be run under buildkit, as buildkit doesn't propagate partition devices
// like /dev/loopXpY into the sandbox. To run the tests on your local computer, do the following:
//
//  go test -exec sudo -v --count 1 github.com/siderolabs/diskforge/internal/pkg/disk

func skipUnlessRoot(t *testing.T) {
	t.Helper()

	if os.Getuid() != 0 {
		t.Skip("can't run the test as non-root")
	}

	if hostname, _ := os.Hostname(); hostname == "buildkitsandbox" { //nolint:errcheck
		t.Skip("test not supported under buildkit as partition devices are not propagated from /dev")
	}
}

func TestLoopDevice(t *testing.T) {
	skipUnlessRoot(t)

	logger := zaptest.NewLogger(t)
	image := filepath.Join(t.TempDir(), "disk.raw")

	require.NoError(t, disk.CreateImage(logging.Printf(logger), image, GiB))

	loop, err := disk.AttachLoop(t.Context(), logger, image)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, loop.Detach())
	})

	dev, err := disk.Open(t.Context(), logger, loop.Path(), 10*time.Second)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, dev.Close())
	})

	assert.True(t, dev.IsBlockDevice())
	assert.EqualValues(t, 512, dev.SectorSize())
	assert.EqualValues(t, GiB, dev.Size())

	result, err := table.Generate(bootAndData(), dev.Size()/dev.SectorSize())
	require.NoError(t, err)

	require.NoError(t, dev.Write(result.Regions))
	require.NoError(t, dev.RereadPartitionTable(t.Context(), 10*time.Second))

	paths, err := disk.PartitionPaths(loop.Path(), len(result.Layout.Partitions))
	require.NoError(t, err)

	require.NoError(t, disk.WaitForPaths(t.Context(), 10*time.Second, paths...))
	require.NoError(t, disk.Verify(logger, loop.Path(), result.Layout))
}
