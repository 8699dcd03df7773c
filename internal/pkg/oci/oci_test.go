// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package oci_test

import (
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/diskforge/internal/pkg/oci"
	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
)

var labels = map[string]string{
	"dev.siderolabs.diskforge.partitions_layout":             "gpt",
	"dev.siderolabs.diskforge.partitions":                    `["efi", "root"]`,
	"dev.siderolabs.diskforge.partition.efi.partition_uuid":  "3c047ff8-e35c-4918-a061-b4c1e5a291e5",
	"dev.siderolabs.diskforge.partition.efi.size_mb":         "100",
	"dev.siderolabs.diskforge.partition.efi.fs":              "fat",
	"dev.siderolabs.diskforge.partition.efi.mount_point":     "/boot/efi",
	"dev.siderolabs.diskforge.partition.root.partition_uuid": "0f06e81a-e78d-426b-a078-30a01aab3fb7",
	"dev.siderolabs.diskforge.partition.root.fs":             "ext4",
	"dev.siderolabs.diskforge.partition.root.mount_point":    "/",
}

func pushImage(t *testing.T) string {
	t.Helper()

	s := httptest.NewServer(registry.New())
	t.Cleanup(s.Close)

	u, err := url.Parse(s.URL)
	require.NoError(t, err)

	img, err := random.Image(256, 1)
	require.NoError(t, err)

	cfg, err := img.ConfigFile()
	require.NoError(t, err)

	cfg = cfg.DeepCopy()
	cfg.OS = "linux"
	cfg.Architecture = "amd64"
	cfg.Config.Labels = labels

	img, err = mutate.ConfigFile(img, cfg)
	require.NoError(t, err)

	ref := u.Host + "/diskforge/layout:v1"

	require.NoError(t, crane.Push(img, ref, crane.WithContext(t.Context())))

	return ref
}

func TestFetchConfig(t *testing.T) {
	t.Parallel()

	ref := pushImage(t)

	img, err := oci.FetchConfig(t.Context(), zaptest.NewLogger(t), ref, oci.WithInsecure(true))
	require.NoError(t, err)

	assert.Equal(t, labels, img.Config.Labels)

	table, err := layout.FromImageConfig(img, layout.DefaultLabelPrefix)
	require.NoError(t, err)

	assert.Equal(t, layout.GPT, table.Type)
	require.Len(t, table.Partitions, 2)
	assert.Equal(t, layout.FilesystemFAT, table.Partitions[0].Placement().Filesystem.Kind)
	assert.Equal(t, "/", table.Partitions[1].Placement().MountPoint)
}

func TestFetchConfigNotFound(t *testing.T) {
	t.Parallel()

	ref := pushImage(t)

	_, err := oci.FetchConfig(t.Context(), zaptest.NewLogger(t), ref[:len(ref)-2]+"v2", oci.WithInsecure(true), oci.WithTimeout(10*time.Second))
	require.Error(t, err)
	assert.ErrorContains(t, err, "MANIFEST_UNKNOWN")

	_, err = oci.FetchConfig(t.Context(), zaptest.NewLogger(t), "Invalid//Reference")
	assert.ErrorContains(t, err, "error parsing image reference")

	_, err = oci.FetchConfig(t.Context(), zaptest.NewLogger(t), ref, oci.WithPlatform("linux/amd64/v2/extra"))
	assert.ErrorContains(t, err, "error parsing platform")
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"architecture":"arm64","os":"linux","config":{"Labels":{"a":"b"}},"rootfs":{"type":"layers","diff_ids":[]}}`), 0o644))

	img, err := oci.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "arm64", img.Architecture)
	assert.Equal(t, map[string]string{"a": "b"}, img.Config.Labels)

	_, err = oci.ParseConfig([]byte("{"))
	assert.ErrorContains(t, err, "error decoding image config")
}
