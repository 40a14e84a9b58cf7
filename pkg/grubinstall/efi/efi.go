// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package efi installs GRUB for EFI platforms via the removable-media path:
// the built core image is copied to EFI/BOOT under the boot directory, named
// per platform (BOOTX64.EFI and friends), where firmware picks it up without
// any NVRAM boot entries.
package efi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/siderolabs/go-copy/copy"

	"github.com/siderolabs/go-grubinstall/internal/pkg/fsutil"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
)

// Directory layout under the boot directory.
const (
	DirName     = "EFI"
	BootDirName = "BOOT"
)

// BootFilePath returns the removable-media loader path for the platform.
func BootFilePath(bootDir string, p platform.Type) (string, error) {
	name, err := p.EFIBootFileName()
	if err != nil {
		return "", err
	}

	return filepath.Join(bootDir, DirName, BootDirName, name), nil
}

// corePath is where the built core image for the platform is staged.
func corePath(grubDir string, p platform.Type) string {
	return filepath.Join(grubDir, string(p), p.CoreImageName())
}

// Verify reports BOOTABLE when the removable-media loader matches the staged
// core image byte for byte, EXIST otherwise.
func Verify(bootDir, grubDir string, p platform.Type) (platform.InstallInfo, error) {
	exist := platform.InstallInfo{Status: platform.StatusExist}

	efiPath, err := BootFilePath(bootDir, p)
	if err != nil {
		return platform.InstallInfo{}, err
	}

	same, err := fsutil.SameContent(corePath(grubDir, p), efiPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exist, nil
		}

		return platform.InstallInfo{}, err
	}

	if !same {
		return exist, nil
	}

	return platform.InstallInfo{
		Status:    platform.StatusBootable,
		Removable: true,
		NVRAM:     false,
	}, nil
}

// Install copies the staged core image to the removable-media path, creating
// the EFI/BOOT directories as needed. Loaders of other platforms are left in
// place.
func Install(bootDir, grubDir string, p platform.Type, printf func(string, ...any)) (platform.InstallInfo, error) {
	if printf == nil {
		printf = func(string, ...any) {}
	}

	efiPath, err := BootFilePath(bootDir, p)
	if err != nil {
		return platform.InstallInfo{}, err
	}

	if err = os.MkdirAll(filepath.Dir(efiPath), 0o755); err != nil {
		return platform.InstallInfo{}, fmt.Errorf("error creating EFI directories: %w", err)
	}

	printf("copying %s -> %s", corePath(grubDir, p), efiPath)

	if err = copy.File(corePath(grubDir, p), efiPath); err != nil {
		return platform.InstallInfo{}, fmt.Errorf("error copying EFI loader: %w", err)
	}

	return platform.InstallInfo{
		Status:    platform.StatusBootable,
		Removable: true,
		NVRAM:     false,
	}, nil
}

// Remove deletes the platform's removable-media loader and prunes the
// EFI/BOOT directories once the last loader is gone. Removing a platform
// that was never installed is a no-op.
func Remove(bootDir string, p platform.Type, printf func(string, ...any)) error {
	if printf == nil {
		printf = func(string, ...any) {}
	}

	efiPath, err := BootFilePath(bootDir, p)
	if err != nil {
		return err
	}

	if err = os.Remove(efiPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("error removing EFI loader: %w", err)
		}
	} else {
		printf("removed %s", efiPath)
	}

	if err = fsutil.PruneIfEmpty(filepath.Join(bootDir, DirName, BootDirName)); err != nil {
		return err
	}

	return fsutil.PruneIfEmpty(filepath.Join(bootDir, DirName))
}

// RemoveCruft deletes the whole EFI tree under the boot directory, catching
// loaders left behind by interrupted installs or foreign tooling.
func RemoveCruft(bootDir string, printf func(string, ...any)) error {
	if printf == nil {
		printf = func(string, ...any) {}
	}

	path := filepath.Join(bootDir, DirName)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}

	printf("removing %s", path)

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("error removing EFI tree: %w", err)
	}

	return nil
}
