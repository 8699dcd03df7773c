// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package disk

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/siderolabs/go-blockdevice/v2/blkid"
	"go.uber.org/zap"

	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
	"github.com/siderolabs/diskforge/pkg/partitioning/resolve"
)

// Verify probes the GPT written to path and compares the partitions found with the layout.
func Verify(logger *zap.Logger, path string, l *resolve.Layout) error {
	if l.Table.Type != layout.GPT {
		logger.Debug("skipping verification of a non-GPT table", zap.Stringer("type", l.Table.Type))

		return nil
	}

	info, err := blkid.ProbePath(path, blkid.WithSkipLocking(true), blkid.WithProbeLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to probe %s: %w", path, err)
	}

	return compare(info, l)
}

func compare(info *blkid.Info, l *resolve.Layout) error {
	if info.Name != "gpt" {
		return fmt.Errorf("expected a GPT, found %q", info.Name)
	}

	if info.UUID != nil && *info.UUID != l.Table.DiskGUID {
		return fmt.Errorf("disk GUID mismatch: expected %s, found %s", l.Table.DiskGUID, info.UUID)
	}

	if len(info.Parts) != len(l.Partitions) {
		return fmt.Errorf("expected %d partitions, found %d", len(l.Partitions), len(info.Parts))
	}

	var result *multierror.Error

	for _, part := range info.Parts {
		index := int(part.PartitionIndex) - 1

		if index < 0 || index >= len(l.Partitions) {
			result = multierror.Append(result, fmt.Errorf("unexpected partition %d", part.PartitionIndex))

			continue
		}

		expected := l.Partitions[index]

		if offset := expected.StartLBA * l.SectorSize; part.PartitionOffset != offset {
			result = multierror.Append(result, fmt.Errorf("partition %d: offset %d, expected %d", index, part.PartitionOffset, offset))
		}

		if size := expected.LengthLBA * l.SectorSize; part.PartitionSize != size {
			result = multierror.Append(result, fmt.Errorf("partition %d: size %d, expected %d", index, part.PartitionSize, size))
		}

		if gptPart, ok := expected.Spec.(*layout.GPTPartition); ok && (part.PartitionUUID == nil || *part.PartitionUUID != gptPart.GUID) {
			result = multierror.Append(result, fmt.Errorf("partition %d: GUID %v, expected %s", index, part.PartitionUUID, gptPart.GUID))
		}
	}

	return result.ErrorOrNil()
}
