// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mbr

import "encoding/binary"

// PartitionEntryCount is the number of primary slots in an MBR partition table.
const PartitionEntryCount = 4

// Partition entry layout; each slot is 16 bytes, CHS fields are ignored.
const (
	partEntrySize          = 16
	partEntryTypeOffset    = 4
	partEntryLBAOffset     = 8
	partEntrySectorsOffset = 12
)

const (
	bootSignature0 = 0x55
	bootSignature1 = 0xaa
)

// Partition type IDs relevant to disk classification; any other value is an
// opaque in-use slot.
const (
	TypeEmpty         = 0x00
	TypeGPTProtective = 0xee
)

// PartitionEntry is one primary slot of the partition table, decoded just far
// enough to classify the disk.
type PartitionEntry struct {
	// Status is the boot indicator byte (0x80 active, 0x00 inactive).
	Status byte

	// Type is the partition type ID; TypeEmpty marks an unused slot.
	Type byte

	// StartLBA is the first absolute sector of the partition.
	StartLBA uint32

	// Sectors is the partition length in sectors.
	Sectors uint32
}

// IsEmpty reports whether the slot is unused.
func (e PartitionEntry) IsEmpty() bool {
	return e.Type == TypeEmpty
}

// HasBootSignature reports whether the sector ends with the 0x55 0xaa boot
// signature. Without it the sector holds no partition table at all.
func (s *Sector) HasBootSignature() bool {
	return s[partTableEnd] == bootSignature0 && s[partTableEnd+1] == bootSignature1
}

// PartitionEntries decodes the four primary partition slots.
func (s *Sector) PartitionEntries() [PartitionEntryCount]PartitionEntry {
	var entries [PartitionEntryCount]PartitionEntry

	for i := range entries {
		raw := s[partTableStart+i*partEntrySize : partTableStart+(i+1)*partEntrySize]

		entries[i] = PartitionEntry{
			Status:   raw[0],
			Type:     raw[partEntryTypeOffset],
			StartLBA: binary.LittleEndian.Uint32(raw[partEntryLBAOffset:]),
			Sectors:  binary.LittleEndian.Uint32(raw[partEntrySectorsOffset:]),
		}
	}

	return entries
}
