// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/siderolabs/gen/xslices"

	"github.com/siderolabs/diskforge/pkg/partitioning/layout"
	"github.com/siderolabs/diskforge/pkg/partitioning/parttype"
	"github.com/siderolabs/diskforge/pkg/partitioning/resolve"
)

// RenderLayout renders the resolved partition layout.
func RenderLayout(l *resolve.Layout, output io.Writer) error {
	fmt.Fprintf(output, "%s: %d sectors of %d bytes (%s), usable %d-%d, alignment %d sectors\n\n",
		l.Table.Type,
		l.DiskSectors,
		l.SectorSize,
		humanize.IBytes(l.DiskSectors*l.SectorSize),
		l.FirstUsableLBA,
		l.LastUsableLBA,
		l.Alignment,
	)

	w := tabwriter.NewWriter(output, 0, 0, 3, ' ', 0)

	fmt.Fprintln(w, strings.Join([]string{"#", "NAME", "START", "END", "SECTORS", "SIZE", "TYPE", "FS", "MOUNT"}, "\t"))

	for _, p := range l.Partitions {
		placement := p.Spec.Placement()

		var typ string

		switch part := p.Spec.(type) {
		case *layout.GPTPartition:
			guid, err := parttype.GPT(placement.Filesystem.Kind)
			if err != nil {
				return err
			}

			typ = parttype.Name(guid)

			if part.PlatformRequired {
				typ += " (required)"
			}
		case *layout.MBRPartition:
			typ = fmt.Sprintf("0x%02x", part.TypeCode)
		}

		mountPoint := placement.MountPoint
		if mountPoint == "" {
			mountPoint = "-"
		}

		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			p.Index,
			partitionName(p.Spec),
			p.StartLBA,
			p.EndLBA(),
			p.LengthLBA,
			humanize.IBytes(p.LengthLBA*l.SectorSize),
			typ,
			placement.Filesystem,
			mountPoint,
		)
	}

	for _, r := range l.Reserved() {
		fmt.Fprintf(w, "-\t%s\t%d\t%d\t%d\t%s\t-\t-\t-\n",
			r.Name,
			r.StartLBA,
			r.EndLBA,
			r.EndLBA-r.StartLBA+1,
			humanize.IBytes((r.EndLBA-r.StartLBA+1)*l.SectorSize),
		)
	}

	return w.Flush()
}

func partitionName(p layout.Partition) string {
	name := "-"

	if gptPart, ok := p.(*layout.GPTPartition); ok && gptPart.Name != "" {
		name = gptPart.Name
	}

	if p.Placement().Bootable {
		name += " *"
	}

	return name
}

// ProvisionedPartition is a partition as reported by RenderPartitions.
type ProvisionedPartition struct {
	Path       string
	MountPoint string
	Filesystem string
	Volumes    []string
}

// RenderPartitions renders formatted partitions.
func RenderPartitions(partitions []ProvisionedPartition, output io.Writer) error {
	w := tabwriter.NewWriter(output, 0, 0, 3, ' ', 0)

	fmt.Fprintln(w, strings.Join([]string{"DEVICE", "FS", "MOUNT", "VOLUMES"}, "\t"))

	for _, p := range partitions {
		volumes := "-"
		if len(p.Volumes) > 0 {
			volumes = strings.Join(p.Volumes, ",")
		}

		mountPoint := p.MountPoint
		if mountPoint == "" {
			mountPoint = "-"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Path, p.Filesystem, mountPoint, volumes)
	}

	return w.Flush()
}

// RenderWarnings prints the validation warnings, one per line.
func RenderWarnings(warnings []string, output io.Writer) {
	for _, line := range xslices.Map(warnings, func(w string) string { return "WARNING: " + w }) {
		fmt.Fprintln(output, line)
	}
}
