// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package endianness_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/diskforge/pkg/endianness"
)

func TestMiddleEndian(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7")

	b := endianness.ToMiddleEndian(id)

	assert.Equal(t, [16]byte{
		0xa2, 0xa0, 0xd0, 0xeb,
		0xe5, 0xb9,
		0x33, 0x44,
		0x87, 0xc0,
		0x68, 0xb6, 0xb7, 0x26, 0x99, 0xc7,
	}, b)

	back, err := endianness.FromMiddleEndian(b[:])
	require.NoError(t, err)

	assert.Equal(t, id, back)

	_, err = endianness.FromMiddleEndian(b[:15])
	assert.EqualError(t, err, "invalid GUID length 15")
}
