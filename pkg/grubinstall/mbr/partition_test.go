// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mbr_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/mbr"
)

// putPartitionEntry writes a partition slot directly into the raw sector.
func putPartitionEntry(buf []byte, slot int, typ byte, startLBA, sectors uint32) {
	entry := buf[0x1be+slot*16:]

	entry[4] = typ
	binary.LittleEndian.PutUint32(entry[8:], startLBA)
	binary.LittleEndian.PutUint32(entry[12:], sectors)
}

func TestHasBootSignature(t *testing.T) {
	t.Parallel()

	buf := make([]byte, mbr.SectorSize)

	s, err := mbr.FromBytes(buf)
	require.NoError(t, err)

	assert.False(t, s.HasBootSignature())

	buf[0x1fe] = 0x55
	buf[0x1ff] = 0xaa

	s, err = mbr.FromBytes(buf)
	require.NoError(t, err)

	assert.True(t, s.HasBootSignature())

	// reversed byte order is not a signature
	buf[0x1fe] = 0xaa
	buf[0x1ff] = 0x55

	s, err = mbr.FromBytes(buf)
	require.NoError(t, err)

	assert.False(t, s.HasBootSignature())
}

func TestPartitionEntries(t *testing.T) {
	t.Parallel()

	buf := make([]byte, mbr.SectorSize)

	putPartitionEntry(buf, 0, 0x83, 2048, 1048576)
	putPartitionEntry(buf, 2, 0x0c, 1050624, 204800)
	buf[0x1be+3*16] = 0x80 // active flag on an otherwise empty slot

	s, err := mbr.FromBytes(buf)
	require.NoError(t, err)

	entries := s.PartitionEntries()

	assert.Equal(t, mbr.PartitionEntry{Type: 0x83, StartLBA: 2048, Sectors: 1048576}, entries[0])
	assert.True(t, entries[1].IsEmpty())
	assert.Equal(t, mbr.PartitionEntry{Type: 0x0c, StartLBA: 1050624, Sectors: 204800}, entries[2])
	assert.Equal(t, mbr.PartitionEntry{Status: 0x80}, entries[3])
	assert.True(t, entries[3].IsEmpty())
}

func TestGPTProtectiveEntry(t *testing.T) {
	t.Parallel()

	buf := make([]byte, mbr.SectorSize)

	putPartitionEntry(buf, 0, mbr.TypeGPTProtective, 1, 0xffffffff)

	s, err := mbr.FromBytes(buf)
	require.NoError(t, err)

	entries := s.PartitionEntries()

	assert.EqualValues(t, mbr.TypeGPTProtective, entries[0].Type)
	assert.False(t, entries[0].IsEmpty())
}
