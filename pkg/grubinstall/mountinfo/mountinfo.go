// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mountinfo resolves the mounted filesystem a directory lives on.
package mountinfo

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siderolabs/gen/optional"
	"github.com/siderolabs/go-blockdevice/v2/blkid"
	"github.com/siderolabs/go-retry/retry"
)

// Entry is a single line of the kernel mount table.
type Entry struct {
	Device     string
	Point      string
	Filesystem string
}

// Mount describes the filesystem backing a directory.
type Mount struct {
	Point      string
	Device     string
	Filesystem string

	// UUID is the filesystem UUID string as the filesystem's native tooling
	// renders it: FAT volume serials are XXXX-XXXX, most other filesystems
	// use the canonical UUID form.
	UUID optional.Optional[string]
}

// ParseMounts reads a mount table in /proc/mounts format.
func ParseMounts(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}

		entries = append(entries, Entry{
			Device:     fields[0],
			Point:      fields[1],
			Filesystem: fields[2],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading mount table: %w", err)
	}

	return entries, nil
}

// BestMatch picks the mount entry whose mount point is the longest prefix of
// path.
//
// Later table entries win ties, matching kernel overmount semantics.
func BestMatch(entries []Entry, path string) (Entry, bool) {
	var (
		best  Entry
		found bool
	)

	path = filepath.Clean(path)

	for _, entry := range entries {
		rel, err := filepath.Rel(entry.Point, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
			continue
		}

		if !found || len(entry.Point) >= len(best.Point) {
			best = entry
			found = true
		}
	}

	return best, found
}

// Resolve returns the mount backing path, with the filesystem UUID resolved
// from the backing device when there is one.
func Resolve(ctx context.Context, path string) (*Mount, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, fmt.Errorf("error opening mount table: %w", err)
	}

	defer f.Close() //nolint:errcheck

	entries, err := ParseMounts(f)
	if err != nil {
		return nil, err
	}

	entry, ok := BestMatch(entries, path)
	if !ok {
		return nil, fmt.Errorf("no mount found for %q", path)
	}

	mount := &Mount{
		Point:      entry.Point,
		Device:     entry.Device,
		Filesystem: entry.Filesystem,
	}

	if !strings.HasPrefix(entry.Device, "/dev/") {
		return mount, nil
	}

	// udev by-uuid links render the UUID exactly the way the filesystem's
	// tooling does, so prefer them over formatting the probed UUID ourselves
	if fsUUID, ok := lookupByUUIDLink(entry.Device); ok {
		mount.UUID = optional.Some(fsUUID)

		return mount, nil
	}

	probed, err := probeUUID(ctx, entry.Device)
	if err != nil {
		return nil, fmt.Errorf("error probing %q: %w", entry.Device, err)
	}

	if id, ok := probed.Get(); ok {
		mount.UUID = optional.Some(FormatUUID(entry.Filesystem, id))
	}

	return mount, nil
}

// lookupByUUIDLink scans /dev/disk/by-uuid for a symlink resolving to device.
func lookupByUUIDLink(device string) (string, bool) {
	const byUUIDDir = "/dev/disk/by-uuid"

	entries, err := os.ReadDir(byUUIDDir)
	if err != nil {
		return "", false
	}

	devPath, err := filepath.EvalSymlinks(device)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		linkPath, err := filepath.EvalSymlinks(filepath.Join(byUUIDDir, entry.Name()))
		if err != nil {
			continue
		}

		if linkPath == devPath {
			return entry.Name(), true
		}
	}

	return "", false
}

// probeUUID probes the filesystem UUID off the backing device, retrying
// briefly when some other process holds the advisory lock.
func probeUUID(ctx context.Context, device string) (optional.Optional[uuid.UUID], error) {
	var info *blkid.Info

	err := retry.Constant(3*time.Second, retry.WithUnits(50*time.Millisecond)).RetryWithContext(ctx,
		func(context.Context) error {
			var probeErr error

			info, probeErr = blkid.ProbePath(device)
			if probeErr != nil {
				if errors.Is(probeErr, blkid.ErrFailedLock) {
					return retry.ExpectedError(probeErr)
				}

				return probeErr
			}

			return nil
		})
	if err != nil {
		return optional.None[uuid.UUID](), err
	}

	if info.UUID == nil {
		return optional.None[uuid.UUID](), nil
	}

	return optional.Some(*info.UUID), nil
}

// fatFilesystems are the mount table filesystem names of the FAT family;
// their volume serials are 32-bit values with their own rendering.
var fatFilesystems = map[string]struct{}{
	"vfat":  {},
	"fat":   {},
	"msdos": {},
}

// FormatUUID renders a probed filesystem UUID the way the filesystem's native
// tooling prints it.
//
// FAT volume serials occupy the leading four bytes of the probed UUID and are
// rendered as two upper-case hex groups; everything else uses the canonical
// UUID form.
func FormatUUID(fs string, id uuid.UUID) string {
	if _, ok := fatFilesystems[fs]; ok {
		serial := binary.BigEndian.Uint32(id[:4])

		return fmt.Sprintf("%04X-%04X", serial>>16, serial&0xffff)
	}

	return id.String()
}
