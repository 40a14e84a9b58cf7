// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package device probes and validates the block devices targeted by a boot
// code install.
//
// Classification works from the first sector: the partition-table kind, the
// number of used primary slots and the gap in front of the first partition
// all come out of the MBR. A whole-device signature probe supplements that,
// catching disks formatted with a filesystem directly (no partition table),
// whose first sector can look deceptively like an MBR.
package device

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/siderolabs/gen/xerrors"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/errkind"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/mbr"
)

// Disk is the device access surface the installer needs: random-access reads
// and writes plus a size. Implementations are not safe for concurrent use.
type Disk interface {
	io.ReaderAt
	io.WriterAt

	// Sync flushes written data to the device.
	Sync() error

	// Size returns the device size in bytes.
	Size() (uint64, error)

	// Close releases the device and any lock held on it.
	Close() error
}

// Table classifies the partition table found on a disk.
type Table int

// Partition table kinds.
const (
	TableNone Table = iota
	TableMBR
	TableGPT
)

func (t Table) String() string {
	switch t {
	case TableNone:
		return "none"
	case TableMBR:
		return "mbr"
	case TableGPT:
		return "gpt"
	default:
		return fmt.Sprintf("table(%d)", int(t))
	}
}

// Info is what probing a disk discovered.
type Info struct {
	// Size is the device size in bytes.
	Size uint64

	// SectorSize is the device logical sector size; boot-machine offsets are
	// always 512-based regardless.
	SectorSize uint

	// Table is the partition table kind.
	Table Table

	// Partitions is the number of used primary partition slots.
	Partitions int

	// FirstPartitionOffset is the byte offset of the lowest-starting
	// partition; equal to Size when an MBR table has no partitions.
	FirstPartitionOffset uint64

	// Signature is the filesystem or partition-table signature recognized on
	// the whole device, empty when none was found or probing was skipped.
	Signature string
}

// Probe classifies the disk from its first sector.
func Probe(disk Disk) (*Info, error) {
	size, err := disk.Size()
	if err != nil {
		return nil, fmt.Errorf("error getting disk size: %w", err)
	}

	info := &Info{
		Size:       size,
		SectorSize: mbr.SectorSize,
		Table:      TableNone,
	}

	if size < mbr.SectorSize {
		return info, nil
	}

	buf := make([]byte, mbr.SectorSize)

	if _, err = disk.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("error reading boot sector: %w", err)
	}

	sector, err := mbr.FromBytes(buf)
	if err != nil {
		return nil, err
	}

	if !sector.HasBootSignature() {
		return info, nil
	}

	info.Table = TableMBR
	info.FirstPartitionOffset = size

	for _, entry := range sector.PartitionEntries() {
		if entry.IsEmpty() {
			continue
		}

		if entry.Type == mbr.TypeGPTProtective {
			info.Table = TableGPT
		}

		info.Partitions++

		if offset := uint64(entry.StartLBA) * mbr.SectorSize; offset < info.FirstPartitionOffset {
			info.FirstPartitionOffset = offset
		}
	}

	return info, nil
}

// Validate decides whether boot code may be installed on the disk: it must
// carry an MBR partition table with zero used partition slots, no filesystem
// signature, and a boot-code gap of at least mbr.GapThreshold in front of the
// first partition (the whole device, for an empty table).
func Validate(info *Info) error {
	if info.Table == TableGPT || info.Signature == "gpt" {
		return xerrors.NewTaggedf[errkind.InvalidDevice]("disk has a GPT partition table, expected MBR")
	}

	if info.Signature != "" {
		return xerrors.NewTaggedf[errkind.InvalidDevice]("disk carries a %s filesystem signature", info.Signature)
	}

	if info.Table == TableNone {
		return xerrors.NewTaggedf[errkind.InvalidDevice]("disk has no MBR partition table")
	}

	if info.Partitions > 0 {
		return xerrors.NewTaggedf[errkind.InvalidDevice]("disk already has %d partition(s)", info.Partitions)
	}

	if info.FirstPartitionOffset < mbr.GapThreshold {
		return xerrors.NewTaggedf[errkind.InvalidDevice](
			"boot code gap of %s is smaller than %s",
			humanize.IBytes(info.FirstPartitionOffset),
			humanize.IBytes(mbr.GapThreshold),
		)
	}

	return nil
}
