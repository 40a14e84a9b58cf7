// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package bios_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/bios"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/device"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/errkind"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/mbr"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
)

// memDisk is an in-memory Disk counting writes, so tests can assert that
// rejected installs never touch the device.
type memDisk struct {
	data   []byte
	writes int
	syncs  int
}

func (d *memDisk) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(d.data).ReadAt(p, off)
}

func (d *memDisk) WriteAt(p []byte, off int64) (int, error) {
	d.writes++

	n := copy(d.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}

	return n, nil
}

func (d *memDisk) Sync() error {
	d.syncs++

	return nil
}

func (d *memDisk) Size() (uint64, error) { return uint64(len(d.data)), nil }

func (d *memDisk) Close() error { return nil }

// emptyMsdosDisk builds a disk with an empty MBR partition table and a
// recognizable BPB pattern to verify preservation.
func emptyMsdosDisk(size int) *memDisk {
	d := &memDisk{data: make([]byte, size)}

	for i := 0x03; i < 0x5a; i++ {
		d.data[i] = 0xbb
	}

	d.data[0x1fe] = 0x55
	d.data[0x1ff] = 0xaa

	return d
}

// payload writes a synthetic boot.img and core image and returns their
// locations together with a fresh grub directory.
func payload(t *testing.T, coreSize int) (srcDir, corePath, grubDir string) {
	t.Helper()

	srcDir = t.TempDir()
	grubDir = filepath.Join(t.TempDir(), "grub")

	require.NoError(t, os.MkdirAll(grubDir, 0o755))

	boot := make([]byte, mbr.SectorSize)

	for i := range boot {
		boot[i] = byte(i*7 + 13)
	}

	boot[0x1fe] = 0x55
	boot[0x1ff] = 0xaa

	require.NoError(t, os.WriteFile(filepath.Join(srcDir, bios.BootImageName), boot, 0o644))

	core := make([]byte, coreSize)

	for i := range core {
		core[i] = byte(i*3 + 5)
	}

	corePath = filepath.Join(srcDir, "core-built.img")
	require.NoError(t, os.WriteFile(corePath, core, 0o644))

	return srcDir, corePath, grubDir
}

func probe(t *testing.T, disk device.Disk) *device.Info {
	t.Helper()

	info, err := device.Probe(disk)
	require.NoError(t, err)

	return info
}

func TestInstall(t *testing.T) {
	t.Parallel()

	srcDir, corePath, grubDir := payload(t, 4096)
	disk := emptyMsdosDisk(4 * 1024 * 1024)

	info, err := bios.Install(bios.InstallRequest{
		GrubDir:   grubDir,
		SourceDir: srcDir,
		CorePath:  corePath,
		Disk:      disk,
		DiskInfo:  probe(t, disk),
		Printf:    t.Logf,
	})
	require.NoError(t, err)

	assert.Equal(t, platform.StatusBootable, info.Status)
	assert.True(t, info.MBRInstalled)
	assert.False(t, info.AllowFloppy)

	// payload copies land in the grub directory
	bootCopy, err := os.ReadFile(filepath.Join(grubDir, bios.BootImageName))
	require.NoError(t, err)

	srcBoot, err := os.ReadFile(filepath.Join(srcDir, bios.BootImageName))
	require.NoError(t, err)

	assert.Equal(t, srcBoot, bootCopy)

	coreCopy, err := os.ReadFile(filepath.Join(grubDir, bios.CoreImageName))
	require.NoError(t, err)

	srcCore, err := os.ReadFile(corePath)
	require.NoError(t, err)

	assert.Equal(t, srcCore, coreCopy)

	// boot sector: BPB and partition table survive, drive check is NOPed,
	// the rest comes from the boot image
	sector := disk.data[:mbr.SectorSize]

	assert.Equal(t, bytes.Repeat([]byte{0xbb}, 0x5a-0x03), sector[0x03:0x5a])
	assert.Equal(t, make([]byte, 0x1fe-0x1be), sector[0x1be:0x1fe])
	assert.Equal(t, []byte{0x90, 0x90}, sector[0x66:0x68])
	assert.Equal(t, srcBoot[:0x03], sector[:0x03])
	assert.Equal(t, srcBoot[0x68:0x1b8], sector[0x68:0x1b8])

	// core image right after the boot sector, both in a single write
	assert.Equal(t, srcCore, disk.data[mbr.SectorSize:mbr.SectorSize+len(srcCore)])

	assert.Equal(t, 1, disk.writes)
	assert.Equal(t, 1, disk.syncs)
}

func TestInstallVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	srcDir, corePath, grubDir := payload(t, 8192)
	disk := emptyMsdosDisk(2 * 1024 * 1024)

	_, err := bios.Install(bios.InstallRequest{
		GrubDir:   grubDir,
		SourceDir: srcDir,
		CorePath:  corePath,
		Disk:      disk,
		DiskInfo:  probe(t, disk),
	})
	require.NoError(t, err)

	info, err := bios.Verify(bios.VerifyRequest{GrubDir: grubDir, Disk: disk})
	require.NoError(t, err)

	assert.Equal(t, platform.StatusBootable, info.Status)
	assert.True(t, info.MBRInstalled)
	assert.False(t, info.AllowFloppy)

	// corrupting the device core image downgrades the install
	disk.data[mbr.SectorSize+100] ^= 0xff

	info, err = bios.Verify(bios.VerifyRequest{GrubDir: grubDir, Disk: disk})
	require.NoError(t, err)

	assert.Equal(t, platform.StatusExist, info.Status)
}

func TestInstallRejections(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name string

		coreSize int
		disk     func() *memDisk
		options  bios.Options

		check func(t *testing.T, err error)
	}{
		{
			name: "allow floppy requested",

			coreSize: 4096,
			disk:     func() *memDisk { return emptyMsdosDisk(4 * 1024 * 1024) },
			options:  bios.Options{AllowFloppy: true},

			check: func(t *testing.T, err error) {
				assert.True(t, errkind.IsUnsupported(err))
			},
		},
		{
			name: "recovery codes requested",

			coreSize: 4096,
			disk:     func() *memDisk { return emptyMsdosDisk(4 * 1024 * 1024) },
			options:  bios.Options{RSCodes: true},

			check: func(t *testing.T, err error) {
				assert.True(t, errkind.IsUnsupported(err))
			},
		},
		{
			name: "core image below one sector",

			coreSize: 511,
			disk:     func() *memDisk { return emptyMsdosDisk(4 * 1024 * 1024) },

			check: func(t *testing.T, err error) {
				assert.True(t, errkind.IsSizeViolation(err))
			},
		},
		{
			name: "core image above the gap threshold",

			coreSize: mbr.GapThreshold + 1,
			disk:     func() *memDisk { return emptyMsdosDisk(4 * 1024 * 1024) },

			check: func(t *testing.T, err error) {
				assert.True(t, errkind.IsSizeViolation(err))
			},
		},
		{
			name: "device without a partition table",

			coreSize: 4096,
			disk:     func() *memDisk { return &memDisk{data: make([]byte, 4 * 1024 * 1024)} },

			check: func(t *testing.T, err error) {
				assert.True(t, errkind.IsInvalidDevice(err))
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			srcDir, corePath, grubDir := payload(t, test.coreSize)
			disk := test.disk()

			_, err := bios.Install(bios.InstallRequest{
				GrubDir:   grubDir,
				SourceDir: srcDir,
				CorePath:  corePath,
				Disk:      disk,
				DiskInfo:  probe(t, disk),
				Options:   test.options,
			})
			require.Error(t, err)

			test.check(t, err)

			assert.Zero(t, disk.writes)
			assert.Zero(t, disk.syncs)
		})
	}
}

func TestInstallRejectsOddBootImage(t *testing.T) {
	t.Parallel()

	srcDir, corePath, grubDir := payload(t, 4096)
	disk := emptyMsdosDisk(4 * 1024 * 1024)

	require.NoError(t, os.WriteFile(filepath.Join(srcDir, bios.BootImageName), make([]byte, 513), 0o644))

	_, err := bios.Install(bios.InstallRequest{
		GrubDir:   grubDir,
		SourceDir: srcDir,
		CorePath:  corePath,
		Disk:      disk,
		DiskInfo:  probe(t, disk),
	})
	require.Error(t, err)

	assert.True(t, errkind.IsSizeViolation(err))
	assert.Zero(t, disk.writes)

	// size validation precedes the grub directory copies
	assert.NoFileExists(t, filepath.Join(grubDir, bios.BootImageName))
	assert.NoFileExists(t, filepath.Join(grubDir, bios.CoreImageName))
}

func TestInstallStaging(t *testing.T) {
	t.Parallel()

	srcDir, corePath, grubDir := payload(t, 4096)

	info, err := bios.Install(bios.InstallRequest{
		GrubDir:   grubDir,
		SourceDir: srcDir,
		CorePath:  corePath,
	})
	require.NoError(t, err)

	assert.Equal(t, platform.StatusBootable, info.Status)
	assert.False(t, info.MBRInstalled)

	assert.FileExists(t, filepath.Join(grubDir, bios.BootImageName))
	assert.FileExists(t, filepath.Join(grubDir, bios.CoreImageName))

	info, err = bios.Verify(bios.VerifyRequest{GrubDir: grubDir})
	require.NoError(t, err)

	assert.Equal(t, platform.StatusBootable, info.Status)
	assert.False(t, info.MBRInstalled)
}

func TestVerifyDowngrades(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name string

		setup func(t *testing.T, grubDir string, disk *memDisk)
	}{
		{
			name: "no payload at all",

			setup: func(*testing.T, string, *memDisk) {},
		},
		{
			name: "boot image of the wrong size",

			setup: func(t *testing.T, grubDir string, _ *memDisk) {
				t.Helper()

				require.NoError(t, os.WriteFile(filepath.Join(grubDir, bios.BootImageName), make([]byte, 100), 0o644))
			},
		},
		{
			name: "core image copy missing",

			setup: func(t *testing.T, grubDir string, disk *memDisk) {
				t.Helper()

				require.NoError(t, os.Remove(filepath.Join(grubDir, bios.CoreImageName)))
			},
		},
		{
			name: "foreign boot sector on the device",

			setup: func(t *testing.T, _ string, disk *memDisk) {
				t.Helper()

				disk.data[0x00] ^= 0xff
			},
		},
		{
			name: "device shorter than the core image",

			setup: func(t *testing.T, _ string, disk *memDisk) {
				t.Helper()

				disk.data = disk.data[:mbr.SectorSize+100]
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			srcDir, corePath, grubDir := payload(t, 4096)
			disk := emptyMsdosDisk(4 * 1024 * 1024)

			if test.name != "no payload at all" {
				_, err := bios.Install(bios.InstallRequest{
					GrubDir:   grubDir,
					SourceDir: srcDir,
					CorePath:  corePath,
					Disk:      disk,
					DiskInfo:  probe(t, disk),
				})
				require.NoError(t, err)
			}

			test.setup(t, grubDir, disk)

			info, err := bios.Verify(bios.VerifyRequest{GrubDir: grubDir, Disk: disk})
			require.NoError(t, err)

			assert.Equal(t, platform.StatusExist, info.Status)
			assert.False(t, info.MBRInstalled)
		})
	}
}

func TestVerifyAllowFloppy(t *testing.T) {
	t.Parallel()

	srcDir, corePath, grubDir := payload(t, 4096)
	disk := emptyMsdosDisk(4 * 1024 * 1024)

	_, err := bios.Install(bios.InstallRequest{
		GrubDir:   grubDir,
		SourceDir: srcDir,
		CorePath:  corePath,
		Disk:      disk,
		DiskInfo:  probe(t, disk),
	})
	require.NoError(t, err)

	// an installation made without the NOP patch keeps the boot image's own
	// drive-check bytes
	boot, err := os.ReadFile(filepath.Join(grubDir, bios.BootImageName))
	require.NoError(t, err)

	copy(disk.data[0x66:0x68], boot[0x66:0x68])

	info, err := bios.Verify(bios.VerifyRequest{GrubDir: grubDir, Disk: disk})
	require.NoError(t, err)

	assert.Equal(t, platform.StatusBootable, info.Status)
	assert.True(t, info.MBRInstalled)
	assert.True(t, info.AllowFloppy)
}
