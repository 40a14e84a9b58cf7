// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mbr manipulates the first sector of a BIOS-partitioned disk.
//
// The sector is shared real estate: GRUB's boot code lives around a BIOS
// parameter block and the primary partition table, both of which belong to
// whatever filesystem/partitioner touched the disk before us and must survive
// an install. All patching and verification happens through deliberate
// region copies over a fixed-size buffer, never ad hoc indexing.
package mbr

import (
	"bytes"
	"fmt"
)

// SectorSize is the disk sector unit all boot-machine offsets are relative to.
const SectorSize = 512

// GapThreshold is the conventional maximum unused space between the MBR and
// the first partition. The core image is written into that gap, so it also
// caps the core image size.
const GapThreshold = 512 * 1024

// Boot-machine layout of the first sector. Region ends are exclusive.
//
//	[0x000, 0x003)  jump instruction
//	[0x003, 0x05a)  BIOS parameter block (preserved from the device)
//	[0x05a, 0x066)  boot code
//	[0x066, 0x068)  drive-check patch point
//	[0x068, 0x1b8)  boot code
//	[0x1b8, 0x1be)  NT disk signature and padding (preserved from the device)
//	[0x1be, 0x1fe)  partition table (preserved from the device)
//	[0x1fe, 0x200)  boot signature
const (
	bpbStart        = 0x003
	bpbEnd          = 0x05a
	driveCheckStart = 0x066
	driveCheckEnd   = 0x068
	ntMagicStart    = 0x1b8
	partTableStart  = 0x1be
	partTableEnd    = 0x1fe
)

// driveCheckNop is the x86 NOP opcode; a NOP pair at the drive-check patch
// point disables the boot-drive sanity check for BIOSes that misreport the
// boot drive.
const driveCheckNop = 0x90

// Sector is one disk sector worth of bytes.
type Sector [SectorSize]byte

// FromBytes copies b into a new Sector; b must be exactly one sector long.
func FromBytes(b []byte) (*Sector, error) {
	if len(b) != SectorSize {
		return nil, fmt.Errorf("expected %d bytes, got %d", SectorSize, len(b))
	}

	var s Sector

	copy(s[:], b)

	return &s, nil
}

// Bytes returns the sector contents as a slice aliasing the sector.
func (s *Sector) Bytes() []byte {
	return s[:]
}

// NewBootSector builds the sector to be written to the device on install.
//
// Executable code and the boot signature come from the source boot image; the
// BPB and the NT-signature-through-partition-table regions are preserved from
// the sector currently on the device; the drive-check bytes are patched to a
// NOP pair.
func NewBootSector(bootImage, current *Sector) *Sector {
	s := *bootImage

	copy(s[bpbStart:bpbEnd], current[bpbStart:bpbEnd])

	s[driveCheckStart] = driveCheckNop
	s[driveCheckStart+1] = driveCheckNop

	copy(s[ntMagicStart:partTableEnd], current[ntMagicStart:partTableEnd])

	return &s
}

// CompareResult is the outcome of matching a device sector against a boot image.
type CompareResult struct {
	// Matches is true when the device sector is a valid installation of the
	// boot image.
	Matches bool

	// AllowFloppy is true when the drive-check bytes were left untouched
	// (floppy boot still possible), false when the NOP patch is in place.
	// Only meaningful when Matches is true.
	AllowFloppy bool
}

// Compare matches the sector read from the device against the stored boot
// image.
//
// Every byte outside the preserved regions must be identical. The drive-check
// bytes are special: a NOP pair is a match with AllowFloppy=false, an exact
// copy of the boot image's bytes is a match with AllowFloppy=true, and any
// other pattern is not classified further: the sector is simply not a
// verified installation.
func Compare(current, bootImage *Sector) CompareResult {
	if !bytes.Equal(current[:bpbStart], bootImage[:bpbStart]) {
		return CompareResult{}
	}

	if !bytes.Equal(current[bpbEnd:driveCheckStart], bootImage[bpbEnd:driveCheckStart]) {
		return CompareResult{}
	}

	if !bytes.Equal(current[driveCheckEnd:ntMagicStart], bootImage[driveCheckEnd:ntMagicStart]) {
		return CompareResult{}
	}

	if !bytes.Equal(current[partTableEnd:], bootImage[partTableEnd:]) {
		return CompareResult{}
	}

	switch {
	case current[driveCheckStart] == driveCheckNop && current[driveCheckStart+1] == driveCheckNop:
		return CompareResult{Matches: true, AllowFloppy: false}
	case bytes.Equal(current[driveCheckStart:driveCheckEnd], bootImage[driveCheckStart:driveCheckEnd]):
		return CompareResult{Matches: true, AllowFloppy: true}
	default:
		return CompareResult{}
	}
}
