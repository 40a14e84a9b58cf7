// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package device_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/device"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/errkind"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/mbr"
)

// memDisk is an in-memory Disk of fixed size.
type memDisk struct {
	data []byte
}

func (d *memDisk) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(d.data).ReadAt(p, off)
}

func (d *memDisk) WriteAt(p []byte, off int64) (int, error) {
	return copy(d.data[off:], p), nil
}

func (d *memDisk) Sync() error { return nil }

func (d *memDisk) Size() (uint64, error) { return uint64(len(d.data)), nil }

func (d *memDisk) Close() error { return nil }

// sectorWith builds a first sector carrying a boot signature and the given
// partition entries (type, start LBA, length in sectors).
func sectorWith(entries ...[3]uint32) []byte {
	buf := make([]byte, mbr.SectorSize)

	buf[0x1fe] = 0x55
	buf[0x1ff] = 0xaa

	for i, e := range entries {
		entry := buf[0x1be+i*16:]

		entry[4] = byte(e[0])
		binary.LittleEndian.PutUint32(entry[8:], e[1])
		binary.LittleEndian.PutUint32(entry[12:], e[2])
	}

	return buf
}

func diskWithSector(size int, sector []byte) *memDisk {
	d := &memDisk{data: make([]byte, size)}

	copy(d.data, sector)

	return d
}

func TestProbe(t *testing.T) {
	t.Parallel()

	const diskSize = 4 * 1024 * 1024

	for _, test := range []struct {
		name string

		disk *memDisk

		expected device.Info
	}{
		{
			name: "blank disk",

			disk: &memDisk{data: make([]byte, diskSize)},

			expected: device.Info{
				Size:       diskSize,
				SectorSize: 512,
				Table:      device.TableNone,
			},
		},
		{
			name: "tiny disk",

			disk: &memDisk{data: make([]byte, 100)},

			expected: device.Info{
				Size:       100,
				SectorSize: 512,
				Table:      device.TableNone,
			},
		},
		{
			name: "empty MBR table",

			disk: diskWithSector(diskSize, sectorWith()),

			expected: device.Info{
				Size:                 diskSize,
				SectorSize:           512,
				Table:                device.TableMBR,
				FirstPartitionOffset: diskSize,
			},
		},
		{
			name: "single partition at 1 MiB",

			disk: diskWithSector(diskSize, sectorWith([3]uint32{0x83, 2048, 2048})),

			expected: device.Info{
				Size:                 diskSize,
				SectorSize:           512,
				Table:                device.TableMBR,
				Partitions:           1,
				FirstPartitionOffset: 2048 * 512,
			},
		},
		{
			name: "partitions out of slot order",

			disk: diskWithSector(diskSize, sectorWith(
				[3]uint32{0x83, 4096, 1024},
				[3]uint32{0x0c, 1024, 1024},
			)),

			expected: device.Info{
				Size:                 diskSize,
				SectorSize:           512,
				Table:                device.TableMBR,
				Partitions:           2,
				FirstPartitionOffset: 1024 * 512,
			},
		},
		{
			name: "GPT protective entry",

			disk: diskWithSector(diskSize, sectorWith([3]uint32{0xee, 1, 0xffffffff})),

			expected: device.Info{
				Size:                 diskSize,
				SectorSize:           512,
				Table:                device.TableGPT,
				Partitions:           1,
				FirstPartitionOffset: 512,
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			info, err := device.Probe(test.disk)
			require.NoError(t, err)

			assert.Equal(t, test.expected, *info)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	const diskSize = 4 * 1024 * 1024

	for _, test := range []struct {
		name string

		info device.Info

		expectedError string
	}{
		{
			name: "suitable disk",

			info: device.Info{Size: diskSize, Table: device.TableMBR, FirstPartitionOffset: diskSize},
		},
		{
			name: "gap exactly at the threshold",

			info: device.Info{Size: diskSize, Table: device.TableMBR, FirstPartitionOffset: mbr.GapThreshold},
		},
		{
			name: "no partition table",

			info: device.Info{Size: diskSize, Table: device.TableNone},

			expectedError: "disk has no MBR partition table",
		},
		{
			name: "GPT table",

			info: device.Info{Size: diskSize, Table: device.TableGPT, Partitions: 1, FirstPartitionOffset: 512},

			expectedError: "disk has a GPT partition table, expected MBR",
		},
		{
			name: "GPT signature without protective entry",

			info: device.Info{Size: diskSize, Table: device.TableMBR, FirstPartitionOffset: diskSize, Signature: "gpt"},

			expectedError: "disk has a GPT partition table, expected MBR",
		},
		{
			name: "filesystem over the whole device",

			info: device.Info{Size: diskSize, Table: device.TableMBR, FirstPartitionOffset: diskSize, Signature: "vfat"},

			expectedError: "disk carries a vfat filesystem signature",
		},
		{
			name: "partitions present",

			info: device.Info{Size: diskSize, Table: device.TableMBR, Partitions: 2, FirstPartitionOffset: 1024 * 1024},

			expectedError: "disk already has 2 partition(s)",
		},
		{
			name: "gap below the threshold",

			info: device.Info{Size: diskSize, Table: device.TableMBR, FirstPartitionOffset: mbr.GapThreshold / 2},

			expectedError: "boot code gap of 256 KiB is smaller than 512 KiB",
		},
		{
			name: "empty table on a tiny disk",

			info: device.Info{Size: 64 * 1024, Table: device.TableMBR, FirstPartitionOffset: 64 * 1024},

			expectedError: "boot code gap of 64 KiB is smaller than 512 KiB",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := device.Validate(&test.info)

			if test.expectedError == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)

				assert.True(t, errkind.IsInvalidDevice(err))
				assert.EqualError(t, err, test.expectedError)
			}
		})
	}
}

func TestProbeValidateRoundTrip(t *testing.T) {
	t.Parallel()

	// freshly created msdos label on a 1 GiB disk
	disk := diskWithSector(1<<30, sectorWith())

	info, err := device.Probe(disk)
	require.NoError(t, err)

	assert.NoError(t, device.Validate(info))
}
