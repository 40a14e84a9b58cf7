// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mbr_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/mbr"
)

// testBootImage builds a deterministic fake boot image whose drive-check
// bytes are not the NOP pair.
func testBootImage(t *testing.T) *mbr.Sector {
	t.Helper()

	buf := make([]byte, mbr.SectorSize)

	for i := range buf {
		buf[i] = byte(i*7 + 13)
	}

	s, err := mbr.FromBytes(buf)
	require.NoError(t, err)

	return s
}

// testDeviceSector builds a fake on-device sector with a BPB and partition
// table unrelated to the boot image.
func testDeviceSector(t *testing.T) *mbr.Sector {
	t.Helper()

	buf := make([]byte, mbr.SectorSize)

	for i := range buf {
		buf[i] = byte(255 - i%251)
	}

	s, err := mbr.FromBytes(buf)
	require.NoError(t, err)

	return s
}

func TestFromBytes(t *testing.T) {
	t.Parallel()

	_, err := mbr.FromBytes(make([]byte, 511))
	assert.Error(t, err)

	_, err = mbr.FromBytes(make([]byte, 513))
	assert.Error(t, err)

	buf := bytes.Repeat([]byte{0xab}, mbr.SectorSize)

	s, err := mbr.FromBytes(buf)
	require.NoError(t, err)

	assert.Equal(t, buf, s.Bytes())

	// FromBytes copies, mutating the input doesn't affect the sector
	buf[0] = 0x00
	assert.EqualValues(t, 0xab, s.Bytes()[0])
}

func TestNewBootSector(t *testing.T) {
	t.Parallel()

	bootImage := testBootImage(t)
	current := testDeviceSector(t)

	patched := mbr.NewBootSector(bootImage, current)

	// executable code and signature from the boot image
	assert.Equal(t, bootImage.Bytes()[:0x3], patched.Bytes()[:0x3])
	assert.Equal(t, bootImage.Bytes()[0x5a:0x66], patched.Bytes()[0x5a:0x66])
	assert.Equal(t, bootImage.Bytes()[0x68:0x1b8], patched.Bytes()[0x68:0x1b8])
	assert.Equal(t, bootImage.Bytes()[0x1fe:], patched.Bytes()[0x1fe:])

	// BPB and NT signature through partition table from the device
	assert.Equal(t, current.Bytes()[0x3:0x5a], patched.Bytes()[0x3:0x5a])
	assert.Equal(t, current.Bytes()[0x1b8:0x1fe], patched.Bytes()[0x1b8:0x1fe])

	// drive check patched to NOPs
	assert.Equal(t, []byte{0x90, 0x90}, patched.Bytes()[0x66:0x68])

	// inputs are left untouched
	assert.Equal(t, testBootImage(t).Bytes(), bootImage.Bytes())
	assert.Equal(t, testDeviceSector(t).Bytes(), current.Bytes())
}

func TestCompare(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name string

		mutate func(device *mbr.Sector, bootImage *mbr.Sector)

		expectedMatches     bool
		expectedAllowFloppy bool
	}{
		{
			name: "freshly patched sector",

			mutate: func(*mbr.Sector, *mbr.Sector) {},

			expectedMatches: true,
		},
		{
			name: "drive check left as in boot image",

			mutate: func(device *mbr.Sector, bootImage *mbr.Sector) {
				copy(device.Bytes()[0x66:0x68], bootImage.Bytes()[0x66:0x68])
			},

			expectedMatches:     true,
			expectedAllowFloppy: true,
		},
		{
			name: "foreign drive check pattern",

			mutate: func(device *mbr.Sector, _ *mbr.Sector) {
				device.Bytes()[0x66] = 0x90
				device.Bytes()[0x67] = 0x91
			},

			expectedMatches: false,
		},
		{
			name: "BPB rewritten by the filesystem",

			mutate: func(device *mbr.Sector, _ *mbr.Sector) {
				device.Bytes()[0x10] ^= 0xff
				device.Bytes()[0x59] ^= 0xff
			},

			expectedMatches: true,
		},
		{
			name: "partition table rewritten",

			mutate: func(device *mbr.Sector, _ *mbr.Sector) {
				device.Bytes()[0x1be] ^= 0xff
				device.Bytes()[0x1c5] ^= 0xff
				device.Bytes()[0x1fd] ^= 0xff
			},

			expectedMatches: true,
		},
		{
			name: "NT disk signature rewritten",

			mutate: func(device *mbr.Sector, _ *mbr.Sector) {
				device.Bytes()[0x1b8] ^= 0xff
				device.Bytes()[0x1bb] ^= 0xff
			},

			expectedMatches: true,
		},
		{
			name: "jump instruction corrupted",

			mutate: func(device *mbr.Sector, _ *mbr.Sector) {
				device.Bytes()[0x0] ^= 0xff
			},

			expectedMatches: false,
		},
		{
			name: "boot code corrupted before drive check",

			mutate: func(device *mbr.Sector, _ *mbr.Sector) {
				device.Bytes()[0x60] ^= 0xff
			},

			expectedMatches: false,
		},
		{
			name: "boot code corrupted after drive check",

			mutate: func(device *mbr.Sector, _ *mbr.Sector) {
				device.Bytes()[0x100] ^= 0xff
			},

			expectedMatches: false,
		},
		{
			name: "boot signature corrupted",

			mutate: func(device *mbr.Sector, _ *mbr.Sector) {
				device.Bytes()[0x1fe] ^= 0xff
			},

			expectedMatches: false,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			bootImage := testBootImage(t)
			device := mbr.NewBootSector(bootImage, testDeviceSector(t))

			test.mutate(device, bootImage)

			result := mbr.Compare(device, bootImage)

			assert.Equal(t, test.expectedMatches, result.Matches)

			if test.expectedMatches {
				assert.Equal(t, test.expectedAllowFloppy, result.AllowFloppy)
			}
		})
	}
}

func TestCompareNopBootImage(t *testing.T) {
	t.Parallel()

	// a boot image whose own drive-check bytes happen to be the NOP pair:
	// classification must pick the NOP interpretation (no floppy boot)
	bootImage := testBootImage(t)
	bootImage.Bytes()[0x66] = 0x90
	bootImage.Bytes()[0x67] = 0x90

	device := mbr.NewBootSector(bootImage, testDeviceSector(t))

	result := mbr.Compare(device, bootImage)

	assert.True(t, result.Matches)
	assert.False(t, result.AllowFloppy)
}
