// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/siderolabs/go-blockdevice/v2/blkid"
	blockdev "github.com/siderolabs/go-blockdevice/v2/block"
	"golang.org/x/sys/unix"
)

// lockTimeout bounds how long opening a disk waits for other holders of the
// advisory lock.
const lockTimeout = 10 * time.Second

// BlockDisk is a Disk over a kernel block device (or a raw disk image file)
// held under an advisory lock for the lifetime of the handle.
type BlockDisk struct {
	dev  *blockdev.Device
	f    *os.File
	path string
}

var _ Disk = (*BlockDisk)(nil)

// Open opens the device for writing under an exclusive lock.
func Open(ctx context.Context, path string) (*BlockDisk, error) {
	return open(ctx, path, true)
}

// OpenReadonly opens the device for reading under a shared lock.
func OpenReadonly(ctx context.Context, path string) (*BlockDisk, error) {
	return open(ctx, path, false)
}

func open(ctx context.Context, path string, write bool) (*BlockDisk, error) {
	var opts []blockdev.Option

	if write {
		opts = append(opts, blockdev.OpenForWrite())
	}

	dev, err := blockdev.NewFromPath(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("error opening disk %s: %w", path, err)
	}

	if err = dev.RetryLockWithTimeout(ctx, write, lockTimeout); err != nil {
		dev.Close() //nolint:errcheck

		return nil, fmt.Errorf("error locking disk %s: %w", path, err)
	}

	return &BlockDisk{
		dev:  dev,
		f:    dev.File(),
		path: path,
	}, nil
}

// Path returns the path the disk was opened from.
func (d *BlockDisk) Path() string {
	return d.path
}

// ReadAt implements io.ReaderAt.
func (d *BlockDisk) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (d *BlockDisk) WriteAt(p []byte, off int64) (int, error) {
	return d.f.WriteAt(p, off)
}

// Sync flushes written data to the device.
func (d *BlockDisk) Sync() error {
	return d.f.Sync()
}

// Size returns the device size in bytes; raw image files report their file
// size.
func (d *BlockDisk) Size() (uint64, error) {
	st, err := d.f.Stat()
	if err != nil {
		return 0, err
	}

	if st.Mode()&os.ModeDevice == 0 {
		return uint64(st.Size()), nil
	}

	var size uint64

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size))); errno != 0 {
		return 0, fmt.Errorf("error getting size of %s: %w", d.path, errno)
	}

	return size, nil
}

// Close releases the lock and the device handle.
func (d *BlockDisk) Close() error {
	d.dev.Unlock() //nolint:errcheck

	return d.dev.Close()
}

// Probe classifies the disk from its first sector and cross-checks with a
// whole-device signature probe, so that a filesystem formatted directly over
// the device is not mistaken for a partition table.
func (d *BlockDisk) Probe() (*Info, error) {
	info, err := Probe(d)
	if err != nil {
		return nil, err
	}

	res, err := blkid.Probe(d.f, blkid.WithSkipLocking(true))
	if err != nil {
		return nil, fmt.Errorf("error probing disk %s: %w", d.path, err)
	}

	info.Signature = res.Name

	if res.SectorSize != 0 {
		info.SectorSize = res.SectorSize
	}

	return info, nil
}

// IsWholeDisk reports whether path refers to a whole disk rather than a
// partition. Regular files count as whole disks (raw disk images).
func IsWholeDisk(path string) (bool, error) {
	var st unix.Stat_t

	if err := unix.Stat(path, &st); err != nil {
		return false, fmt.Errorf("error examining %s: %w", path, err)
	}

	switch st.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		return true, nil
	case unix.S_IFBLK:
	default:
		return false, fmt.Errorf("%s is not a block device", path)
	}

	// partition devices carry a partition attribute in sysfs, whole disks don't
	sysPath := fmt.Sprintf("/sys/dev/block/%d:%d/partition", unix.Major(uint64(st.Rdev)), unix.Minor(uint64(st.Rdev)))

	_, err := os.Stat(sysPath)

	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, os.ErrNotExist):
		return true, nil
	default:
		return false, err
	}
}
