// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imager_test

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/diskforge/pkg/imager"
	"github.com/siderolabs/diskforge/pkg/imager/qemuimg"
	"github.com/siderolabs/diskforge/pkg/logging"
)

func TestFormats(t *testing.T) {
	t.Parallel()

	var diskFormat imager.DiskFormat

	require.NoError(t, diskFormat.Set("QCOW2"))
	assert.Equal(t, imager.DiskFormatQCOW2, diskFormat)
	assert.Equal(t, "qcow2", diskFormat.String())

	assert.EqualError(t, diskFormat.Set("ova"), `unsupported disk format "ova", expected one of raw, qcow2, vmdk, vhd`)

	var outFormat imager.OutFormat

	require.NoError(t, outFormat.Set("zstd"))
	assert.Equal(t, imager.OutFormatZSTD, outFormat)
	assert.Equal(t, ".zst", outFormat.Extension())

	require.NoError(t, outFormat.Set("none"))
	assert.Empty(t, outFormat.Extension())

	assert.Equal(t, "OutFormat(42)", imager.OutFormat(42).String())
}

func TestConvertArgs(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]string{"convert", "-f", "raw", "-O", "qcow2", "disk.raw", "disk.qcow2"},
		qemuimg.ConvertArgs("raw", "qcow2", "", "disk.raw", "disk.qcow2"),
	)

	assert.Equal(t,
		[]string{"convert", "-f", "raw", "-O", "vpc", "-o", "subformat=fixed,force_size", "disk.raw", "disk.vhd"},
		qemuimg.ConvertArgs("raw", "vpc", "subformat=fixed,force_size", "disk.raw", "disk.vhd"),
	)
}

func TestPostProcessZstd(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "disk.raw")
	contents := bytes.Repeat([]byte{0xEE, 0x55, 0xAA, 0x00}, 64*1024)

	require.NoError(t, os.WriteFile(path, contents, 0o644))

	out, err := imager.PostProcess(t.Context(), path, imager.Options{
		OutFormat: imager.OutFormatZSTD,
		Printf:    logging.Printf(zaptest.NewLogger(t)),
	})
	require.NoError(t, err)

	assert.Equal(t, path+".zst", out)
	assert.NoFileExists(t, path)

	compressed, err := os.Open(out)
	require.NoError(t, err)

	defer compressed.Close() //nolint:errcheck

	zr, err := zstd.NewReader(compressed)
	require.NoError(t, err)

	defer zr.Close()

	var decompressed bytes.Buffer

	_, err = decompressed.ReadFrom(zr)
	require.NoError(t, err)

	assert.Equal(t, contents, decompressed.Bytes())
}

func TestPostProcessRaw(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "disk.raw")

	require.NoError(t, os.WriteFile(path, []byte("raw"), 0o644))

	out, err := imager.PostProcess(t.Context(), path, imager.Options{DiskFormat: imager.DiskFormatRaw})
	require.NoError(t, err)
	assert.Equal(t, path, out)
	assert.FileExists(t, path)

	_, err = imager.PostProcess(t.Context(), path, imager.Options{DiskFormat: imager.DiskFormat(42)})
	assert.EqualError(t, err, "unsupported disk format: DiskFormat(42)")
}

func TestPostProcessQCOW2(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("qemu-img"); err != nil {
		t.Skip("skipping test; qemu-img is not available")
	}

	path := filepath.Join(t.TempDir(), "disk.raw")

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, os.Truncate(path, 16*1024*1024))

	out, err := imager.PostProcess(t.Context(), path, imager.Options{DiskFormat: imager.DiskFormatQCOW2})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(filepath.Dir(path), "disk.qcow2"), out)
	assert.NoFileExists(t, path)

	header := make([]byte, 4)

	f, err := os.Open(out)
	require.NoError(t, err)

	defer f.Close() //nolint:errcheck

	_, err = f.Read(header)
	require.NoError(t, err)

	assert.Equal(t, []byte("QFI\xfb"), header)
}
