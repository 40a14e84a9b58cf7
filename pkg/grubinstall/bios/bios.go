// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package bios installs BIOS boot code: boot.img into the first sector of
// the disk and core.img into the gap before the first partition.
//
// Copies of both images are kept in the grub directory; verification reads
// the copies back and matches them byte-for-byte against the device, so a
// later install of a different GRUB build is detected as a mismatch rather
// than silently trusted.
package bios

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/siderolabs/gen/xerrors"
	"github.com/siderolabs/go-copy/copy"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/device"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/errkind"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/mbr"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
)

// Names of the boot payload copies kept in the grub directory.
const (
	BootImageName = "boot.img"
	CoreImageName = "core.img"
)

// VerifyRequest describes one verification pass.
type VerifyRequest struct {
	// GrubDir is the grub directory holding the boot.img/core.img copies.
	GrubDir string

	// Disk is the backing device; nil when the target has none (staging
	// directories), in which case only the payload copies are checked.
	Disk device.Disk
}

// Verify decides how far along an installation is: EXIST when the payload
// copies are present but the device does not carry them, BOOTABLE when the
// boot sector and core image on the device match the copies exactly.
//
//nolint:gocyclo
func Verify(req VerifyRequest) (platform.InstallInfo, error) {
	exist := platform.InstallInfo{Status: platform.StatusExist}

	bootBuf, err := os.ReadFile(filepath.Join(req.GrubDir, BootImageName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exist, nil
		}

		return platform.InstallInfo{}, err
	}

	if len(bootBuf) != mbr.SectorSize {
		return exist, nil
	}

	coreBuf, err := os.ReadFile(filepath.Join(req.GrubDir, CoreImageName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exist, nil
		}

		return platform.InstallInfo{}, err
	}

	if len(coreBuf) < mbr.SectorSize || len(coreBuf) > mbr.GapThreshold {
		return exist, nil
	}

	if req.Disk == nil {
		return platform.InstallInfo{
			Status:       platform.StatusBootable,
			MBRInstalled: false,
		}, nil
	}

	bootImage, err := mbr.FromBytes(bootBuf)
	if err != nil {
		return platform.InstallInfo{}, err
	}

	sectorBuf := make([]byte, mbr.SectorSize)

	if _, err = req.Disk.ReadAt(sectorBuf, 0); err != nil {
		return platform.InstallInfo{}, fmt.Errorf("error reading boot sector: %w", err)
	}

	current, err := mbr.FromBytes(sectorBuf)
	if err != nil {
		return platform.InstallInfo{}, err
	}

	result := mbr.Compare(current, bootImage)
	if !result.Matches {
		return exist, nil
	}

	deviceCore := make([]byte, len(coreBuf))

	if _, err = req.Disk.ReadAt(deviceCore, mbr.SectorSize); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// device is shorter than the recorded core image
			return exist, nil
		}

		return platform.InstallInfo{}, fmt.Errorf("error reading core image back: %w", err)
	}

	if !bytes.Equal(deviceCore, coreBuf) {
		return exist, nil
	}

	return platform.InstallInfo{
		Status:       platform.StatusBootable,
		MBRInstalled: true,
		AllowFloppy:  result.AllowFloppy,
	}, nil
}

// Options modify a BIOS install.
type Options struct {
	// AllowFloppy requests keeping the floppy-compatible boot path.
	AllowFloppy bool

	// RSCodes requests Reed-Solomon recovery codes around the core image.
	RSCodes bool
}

// InstallRequest describes one BIOS install.
type InstallRequest struct {
	// GrubDir receives the boot.img/core.img copies.
	GrubDir string

	// SourceDir is the platform payload directory holding boot.img.
	SourceDir string

	// CorePath is the freshly built core image.
	CorePath string

	// Disk is the device to write boot code to; nil skips the device part
	// (staging directories).
	Disk device.Disk

	// DiskInfo is the probe result for Disk, required when Disk is set.
	DiskInfo *device.Info

	// Printf logs progress.
	Printf func(string, ...any)

	Options Options
}

// Install places the BIOS boot payload.
//
// Image sizes are validated up front, then boot.img and core.img are copied
// into the grub directory. When a device is attached it must pass
// device.Validate before anything is written; the boot sector is then spliced
// per mbr.NewBootSector and written together with the core image.
//
//nolint:gocyclo
func Install(req InstallRequest) (platform.InstallInfo, error) {
	printf := req.Printf
	if printf == nil {
		printf = func(string, ...any) {}
	}

	if req.Options.AllowFloppy {
		return platform.InstallInfo{}, xerrors.NewTaggedf[errkind.Unsupported]("floppy-compatible installs are not supported")
	}

	if req.Options.RSCodes {
		return platform.InstallInfo{}, xerrors.NewTaggedf[errkind.Unsupported]("Reed-Solomon recovery codes are not supported")
	}

	bootBuf, err := os.ReadFile(filepath.Join(req.SourceDir, BootImageName))
	if err != nil {
		return platform.InstallInfo{}, fmt.Errorf("error reading boot image: %w", err)
	}

	if len(bootBuf) != mbr.SectorSize {
		return platform.InstallInfo{}, xerrors.NewTaggedf[errkind.SizeViolation](
			"boot image is %d bytes, expected exactly %d",
			len(bootBuf), mbr.SectorSize,
		)
	}

	coreBuf, err := os.ReadFile(req.CorePath)
	if err != nil {
		return platform.InstallInfo{}, fmt.Errorf("error reading core image: %w", err)
	}

	if len(coreBuf) < mbr.SectorSize {
		return platform.InstallInfo{}, xerrors.NewTaggedf[errkind.SizeViolation](
			"core image is %d bytes, expected at least one sector (%d bytes)",
			len(coreBuf), mbr.SectorSize,
		)
	}

	if len(coreBuf) > mbr.GapThreshold {
		return platform.InstallInfo{}, xerrors.NewTaggedf[errkind.SizeViolation](
			"core image is %s, expected at most %s",
			humanize.IBytes(uint64(len(coreBuf))), humanize.IBytes(mbr.GapThreshold),
		)
	}

	if err = copy.File(filepath.Join(req.SourceDir, BootImageName), filepath.Join(req.GrubDir, BootImageName)); err != nil {
		return platform.InstallInfo{}, fmt.Errorf("error copying boot image: %w", err)
	}

	if err = copy.File(req.CorePath, filepath.Join(req.GrubDir, CoreImageName)); err != nil {
		return platform.InstallInfo{}, fmt.Errorf("error copying core image: %w", err)
	}

	if req.Disk == nil {
		printf("no device attached, skipping boot sector install")

		return platform.InstallInfo{
			Status:       platform.StatusBootable,
			MBRInstalled: false,
		}, nil
	}

	if err = device.Validate(req.DiskInfo); err != nil {
		return platform.InstallInfo{}, err
	}

	if gap := req.DiskInfo.FirstPartitionOffset; uint64(len(coreBuf))+mbr.SectorSize > gap {
		return platform.InstallInfo{}, xerrors.NewTaggedf[errkind.SizeViolation](
			"core image of %s does not fit the boot code gap of %s",
			humanize.IBytes(uint64(len(coreBuf))), humanize.IBytes(gap),
		)
	}

	bootImage, err := mbr.FromBytes(bootBuf)
	if err != nil {
		return platform.InstallInfo{}, err
	}

	sectorBuf := make([]byte, mbr.SectorSize)

	if _, err = req.Disk.ReadAt(sectorBuf, 0); err != nil {
		return platform.InstallInfo{}, fmt.Errorf("error reading boot sector: %w", err)
	}

	current, err := mbr.FromBytes(sectorBuf)
	if err != nil {
		return platform.InstallInfo{}, err
	}

	patched := mbr.NewBootSector(bootImage, current)

	// the patched sector and the core image occupy one contiguous span
	// starting at sector zero
	span := make([]byte, 0, mbr.SectorSize+len(coreBuf))
	span = append(span, patched.Bytes()...)
	span = append(span, coreBuf...)

	printf("writing %s and %s (%s) to the start of the device", BootImageName, CoreImageName, humanize.IBytes(uint64(len(span))))

	if _, err = req.Disk.WriteAt(span, 0); err != nil {
		return platform.InstallInfo{}, fmt.Errorf("error writing boot sector and core image: %w", err)
	}

	if err = req.Disk.Sync(); err != nil {
		return platform.InstallInfo{}, fmt.Errorf("error syncing device: %w", err)
	}

	return platform.InstallInfo{
		Status:       platform.StatusBootable,
		MBRInstalled: true,
	}, nil
}

// Remove is deliberately a no-op on the device: overwriting the boot sector
// to "uninstall" would risk the partition table for no gain, and the boot
// code gap contents are harmless without a boot sector pointing at them.
// Removing the payload copies from the grub directory is the caller's job.
func Remove() error {
	return nil
}
