// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package makefs

import (
	"errors"

	"github.com/google/uuid"
	"github.com/siderolabs/go-blockdevice/v2/swap"
)

// FilesystemTypeSwap is the filesystem type for swap.
const FilesystemTypeSwap = "swap"

// Swap writes a swap signature to the specified partition.
func Swap(partname string, setters ...Option) error {
	if partname == "" {
		return errors.New("missing path to disk")
	}

	opts := NewDefaultOptions(setters...)

	id := uuid.New()
	if opts.UUID != nil {
		id = *opts.UUID
	}

	opts.Printf("creating swap on %s with UUID %s", partname, id)

	return swap.Format(partname, swap.FormatOptions{
		Label: opts.Label,
		UUID:  id,
	})
}
