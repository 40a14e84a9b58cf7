// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package image assembles a platform's core boot image: module selection,
// load configuration and the build itself.
package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/siderolabs/gen/xerrors"
	"github.com/siderolabs/go-copy/copy"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/errkind"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/source"
)

// SearchModule is linked into every core image: the image locates its root
// filesystem by UUID, never by a fixed device path, so it stays valid when
// drive ordering changes.
const SearchModule = "search_fs_uuid"

// LoadConfigName is the load configuration file name within a platform
// directory.
const LoadConfigName = "load.cfg"

// fsModules maps kernel filesystem names to GRUB driver modules.
var fsModules = map[string]string{
	"vfat":     "fat",
	"fat":      "fat",
	"msdos":    "fat",
	"ext2":     "ext2",
	"ext3":     "ext2",
	"ext4":     "ext2",
	"xfs":      "xfs",
	"btrfs":    "btrfs",
	"f2fs":     "f2fs",
	"ntfs":     "ntfs",
	"ntfs3":    "ntfs",
	"exfat":    "exfat",
	"iso9660":  "iso9660",
	"udf":      "udf",
	"hfsplus":  "hfsplus",
	"jfs":      "jfs",
	"reiserfs": "reiserfs",
	"squashfs": "squash4",
	"zfs":      "zfs",
}

// FSModule returns the GRUB driver module for a kernel filesystem name.
func FSModule(fs string) (string, error) {
	if module, ok := fsModules[fs]; ok {
		return module, nil
	}

	return "", xerrors.NewTaggedf[errkind.FilesystemMismatch]("no boot filesystem driver for %q", fs)
}

// IsFATFamily reports whether the kernel filesystem name belongs to the FAT
// family (the only family valid for an EFI system partition).
func IsFATFamily(fs string) bool {
	switch fs {
	case "vfat", "fat", "msdos":
		return true
	default:
		return false
	}
}

// Modules computes the ordered module list for a platform hosted on fs:
// disk-access modules first, then the filesystem driver, then the UUID
// search module.
func Modules(p platform.Type, fs string) ([]string, error) {
	if p.Family() == platform.FamilyEFI && !IsFATFamily(fs) {
		return nil, xerrors.NewTaggedf[errkind.FilesystemMismatch]("filesystem %q doesn't look like an EFI system partition", fs)
	}

	fsModule, err := FSModule(fs)
	if err != nil {
		return nil, err
	}

	return slices.Concat(p.DiskModules(), []string{fsModule, SearchModule}), nil
}

// LoadConfig renders the load configuration embedded into a core image: find
// the root filesystem by UUID, then find the grub directory by its path
// relative to that filesystem.
func LoadConfig(fsUUID, prefix string) string {
	return fmt.Sprintf("search.fs_uuid %s root\nset prefix=($root)%s\n", fsUUID, grubQuote(prefix))
}

// grubQuote single-quotes a string for the GRUB shell.
func grubQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Prefix computes the grub directory path as seen from the root of its
// filesystem.
func Prefix(mountPoint, grubDir string) (string, error) {
	rel, err := filepath.Rel(mountPoint, grubDir)
	if err != nil {
		return "", err
	}

	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("grub directory %q is outside of mount point %q", grubDir, mountPoint)
	}

	if rel == "." {
		return "/", nil
	}

	return "/" + filepath.ToSlash(rel), nil
}

// Request describes one platform payload installation into the grub tree.
type Request struct {
	Platform   platform.Type
	GrubDir    string
	Filesystem string
	FSUUID     string
	Prefix     string
	Source     source.Source
	Printf     func(string, ...any)
}

// Install stages the platform payload into the grub tree and builds the core
// image, returning the built image path.
//
// The platform directory is replaced wholesale: modules and lists are copied
// from the source, then the load configuration is generated and the core
// image built next to it.
func Install(ctx context.Context, req Request) (string, error) {
	printf := req.Printf
	if printf == nil {
		printf = func(string, ...any) {}
	}

	modules, err := Modules(req.Platform, req.Filesystem)
	if err != nil {
		return "", err
	}

	srcDir, err := req.Source.PlatformDir(req.Platform)
	if err != nil {
		return "", err
	}

	platformDir := filepath.Join(req.GrubDir, string(req.Platform))

	if err = os.RemoveAll(platformDir); err != nil {
		return "", fmt.Errorf("error clearing platform directory: %w", err)
	}

	printf("copying platform files %s -> %s", srcDir, platformDir)

	if err = copy.Dir(srcDir, platformDir); err != nil {
		return "", fmt.Errorf("error copying platform files: %w", err)
	}

	loadConfigPath := filepath.Join(platformDir, LoadConfigName)

	if err = os.WriteFile(loadConfigPath, []byte(LoadConfig(req.FSUUID, req.Prefix)), 0o644); err != nil {
		return "", fmt.Errorf("error writing load configuration: %w", err)
	}

	outputPath := filepath.Join(platformDir, req.Platform.CoreImageName())

	printf("building core image %s (modules: %s)", outputPath, strings.Join(modules, " "))

	if err = req.Source.MakeImage(ctx, source.MakeImageRequest{
		PlatformDir:    platformDir,
		Target:         req.Platform.MkimageTarget(),
		LoadConfigPath: loadConfigPath,
		Prefix:         req.Prefix,
		Modules:        modules,
		OutputPath:     outputPath,
	}); err != nil {
		return "", err
	}

	return outputPath, nil
}
