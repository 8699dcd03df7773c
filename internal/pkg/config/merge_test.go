// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config_test

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/diskforge/internal/pkg/config"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestMerge(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	parts := []string{
		filepath.Join(dir, "1.toml"),
		filepath.Join(dir, "2.toml"),
		filepath.Join(dir, "3.toml"),
	}

	contents := []string{
		"[disk]\nsector-size = \"512\"\nalignment = \"1MiB\"\n\n[log]\nlevel = \"info\"\n",
		"[disk]\nalignment = \"4MiB\"\n",
		"[mbr]\nheads = 16\n\n[log]\nlevel = \"debug\"\n",
	}

	for i := range parts {
		writeFile(t, parts[i], contents[i])
	}

	out, checksums, err := config.Merge(parts)
	require.NoError(t, err)

	for i, part := range parts {
		sum := sha256.Sum256([]byte(contents[i]))

		assert.Equal(t, sum[:], checksums[part])
		assert.Contains(t, string(out), "## "+part+" (sha256:"+hex.EncodeToString(sum[:])+")\n")
	}

	var merged map[string]any

	require.NoError(t, toml.Unmarshal(out, &merged))

	assert.Equal(t, map[string]any{
		"disk": map[string]any{
			"sector-size": "512",
			"alignment":   "4MiB",
		},
		"mbr": map[string]any{
			"heads": int64(16),
		},
		"log": map[string]any{
			"level": "debug",
		},
	}, merged)
}

func TestMergeErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "1.toml"), "[disk]\nalignment = \"1MiB\"\n")
	writeFile(t, filepath.Join(dir, "2.toml"), "disk = 5\n")
	writeFile(t, filepath.Join(dir, "broken.toml"), "[disk\n")

	_, _, err := config.Merge([]string{filepath.Join(dir, "1.toml"), filepath.Join(dir, "2.toml")})
	require.Error(t, err)
	assert.True(t, strings.HasSuffix(err.Error(), "disk: can't merge a table with a value"), err.Error())

	_, _, err = config.Merge([]string{filepath.Join(dir, "broken.toml")})
	assert.ErrorContains(t, err, "error decoding")

	_, _, err = config.Merge([]string{filepath.Join(dir, "missing.toml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
