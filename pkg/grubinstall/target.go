// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package grubinstall

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/siderolabs/gen/xerrors"
	"github.com/siderolabs/gen/xslices"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/efi"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/errkind"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/image"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/mountinfo"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/source"
)

// Target is a GRUB installation destination: a boot directory plus, for
// mounted devices, the disk that BIOS boot code goes to.
//
// A Target is not safe for concurrent use; callers serialize per
// (boot directory, device) pair.
type Target struct {
	kind    Kind
	mode    AccessMode
	bootDir string
	devPath string

	platforms  map[platform.Type]platform.InstallInfo
	strategies map[platform.Family]strategy
	opts       Options
}

// NewMountedDevice opens a target whose boot directory lives on a mounted
// filesystem backed by devicePath; BIOS installs write boot code to that
// device. In read-capable modes the existing grub tree is scanned and every
// platform found is verified.
func NewMountedDevice(ctx context.Context, bootDir, devicePath string, mode AccessMode, opts ...Option) (*Target, error) {
	if devicePath == "" {
		return nil, fmt.Errorf("mounted device target requires a device path")
	}

	return newTarget(ctx, KindMountedDevice, bootDir, devicePath, mode, opts)
}

// NewStagingDir opens a target over a plain directory with no backing
// device: BIOS installs stage the boot payload without touching any boot
// sector, EFI installs behave as on a mounted device.
func NewStagingDir(ctx context.Context, dir string, mode AccessMode, opts ...Option) (*Target, error) {
	return newTarget(ctx, KindStagingDir, dir, "", mode, opts)
}

// NewOpticalImage would install into an El Torito boot image. Bootable media
// are produced by staging into a directory and mastering it (see the iso
// package) instead, so this constructor only reports the kind as unsupported.
func NewOpticalImage(context.Context, string, AccessMode, ...Option) (*Target, error) {
	return nil, xerrors.NewTaggedf[errkind.Unsupported]("%s targets are not supported", KindOpticalImage)
}

func newTarget(ctx context.Context, kind Kind, bootDir, devPath string, mode AccessMode, opts []Option) (*Target, error) {
	if !mode.valid() {
		return nil, xerrors.NewTaggedf[errkind.InvalidMode]("unknown access mode %d", mode)
	}

	if bootDir == "" {
		return nil, fmt.Errorf("target requires a boot directory")
	}

	options := defaultOptions()

	for _, o := range opts {
		o(&options)
	}

	t := &Target{
		kind:       kind,
		mode:       mode,
		bootDir:    bootDir,
		devPath:    devPath,
		platforms:  map[platform.Type]platform.InstallInfo{},
		strategies: strategiesFor(kind),
		opts:       options,
	}

	if mode.CanRead() {
		if err := t.scan(ctx); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Kind returns the target container type.
func (t *Target) Kind() Kind {
	return t.kind
}

// Mode returns the access mode the target was opened with.
func (t *Target) Mode() AccessMode {
	return t.mode
}

// BootDir returns the boot directory.
func (t *Target) BootDir() string {
	return t.bootDir
}

// Device returns the backing device path, empty for targets without one.
func (t *Target) Device() string {
	return t.devPath
}

// GrubDir returns the grub tree directory under the boot directory.
func (t *Target) GrubDir() string {
	return filepath.Join(t.bootDir, GrubDirName)
}

// Close releases the target. Nothing is held open between operations today;
// Close exists for symmetry with the open-style constructors.
func (t *Target) Close() error {
	return nil
}

func (t *Target) strategy(p platform.Type) strategy {
	return t.strategies[p.Family()]
}

// scan picks up platforms already present in the grub tree. A directory
// whose name parses as a platform type starts out provisionally bootable and
// is downgraded by verification when the boot path turns out broken.
func (t *Target) scan(ctx context.Context) error {
	entries, err := os.ReadDir(t.GrubDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("error reading grub directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		p, parseErr := platform.Parse(entry.Name())
		if parseErr != nil {
			// locale/fonts/themes and foreign directories
			continue
		}

		info, err := t.strategy(p).verify(ctx, t, p)
		if err != nil {
			return fmt.Errorf("error verifying platform %s: %w", p, err)
		}

		t.platforms[p] = info
	}

	return nil
}

// PlatformInstallInfo reports the recorded state of a platform; platforms
// never seen by scan or install come back as StatusNotExist. It never fails.
func (t *Target) PlatformInstallInfo(p platform.Type) platform.InstallInfo {
	if info, ok := t.platforms[p]; ok {
		return info
	}

	return platform.NotInstalled()
}

// Platforms lists the recorded platforms in canonical order.
func (t *Target) Platforms() []platform.Type {
	return xslices.Filter(platform.All(), func(p platform.Type) bool {
		_, ok := t.platforms[p]

		return ok
	})
}

// InstallOptions modify an installation. Both fields request boot variants
// the installer deliberately does not produce and fail as unsupported.
type InstallOptions struct {
	// AllowFloppy keeps the floppy-compatible boot path in BIOS boot code.
	AllowFloppy bool

	// RSCodes adds Reed-Solomon recovery codes around the BIOS core image.
	RSCodes bool
}

// InstallPlatform installs the boot payload for a platform from the source:
// the platform files are copied into the grub tree, the core image is built
// with its load configuration bound to the boot directory's filesystem UUID,
// and the family strategy places the boot code (boot sector write for BIOS
// on mounted devices, removable-media loader copy for EFI).
//
// Installing over an already bootable platform is refused; remove it first.
//
//nolint:gocyclo
func (t *Target) InstallPlatform(ctx context.Context, p platform.Type, src source.Source, opts InstallOptions) error {
	if !t.mode.CanWrite() {
		return xerrors.NewTaggedf[errkind.InvalidMode]("install requires write access, target is %s", t.mode)
	}

	if t.PlatformInstallInfo(p).Status == platform.StatusBootable {
		return fmt.Errorf("platform %s is already installed and bootable", p)
	}

	if !p.Installable() {
		return xerrors.NewTaggedf[errkind.Unsupported]("installing platform %s is not supported", p)
	}

	if opts.AllowFloppy {
		return xerrors.NewTaggedf[errkind.Unsupported]("floppy-compatible installs are not supported")
	}

	if opts.RSCodes {
		return xerrors.NewTaggedf[errkind.Unsupported]("Reed-Solomon recovery codes are not supported")
	}

	mount, err := t.mountProbe(ctx)
	if err != nil {
		return err
	}

	fsUUID, ok := mount.UUID.Get()
	if !ok {
		return xerrors.NewTaggedf[errkind.MountProbe]("filesystem of %s has no UUID", t.bootDir)
	}

	prefix, err := image.Prefix(mount.Point, t.GrubDir())
	if err != nil {
		return err
	}

	srcDir, err := src.PlatformDir(p)
	if err != nil {
		return err
	}

	corePath, err := image.Install(ctx, image.Request{
		Platform:   p,
		GrubDir:    t.GrubDir(),
		Filesystem: mount.Filesystem,
		FSUUID:     fsUUID,
		Prefix:     prefix,
		Source:     src,
		Printf:     t.opts.Printf,
	})
	if err != nil {
		return err
	}

	info, err := t.strategy(p).install(ctx, t, p, installPaths{sourceDir: srcDir, corePath: corePath})
	if err != nil {
		return err
	}

	t.platforms[p] = info

	return nil
}

// RemovePlatform removes a platform: the family strategy undoes its boot
// mechanism (EFI loader removal; BIOS boot sectors are left alone), then the
// per-platform directory is deleted and the record dropped. Removing a
// platform that is not installed is a no-op.
func (t *Target) RemovePlatform(ctx context.Context, p platform.Type) error {
	if !t.mode.CanWrite() {
		return xerrors.NewTaggedf[errkind.InvalidMode]("remove requires write access, target is %s", t.mode)
	}

	if err := t.strategy(p).remove(ctx, t, p); err != nil {
		return err
	}

	if err := os.RemoveAll(filepath.Join(t.GrubDir(), string(p))); err != nil {
		return fmt.Errorf("error removing platform directory: %w", err)
	}

	delete(t.platforms, p)

	return nil
}

// RemoveAll tears the whole installation down: every recorded platform is
// removed, stray EFI loaders are swept, and the grub tree is deleted.
// Failures do not stop the teardown; they are aggregated.
func (t *Target) RemoveAll(ctx context.Context) error {
	if !t.mode.CanWrite() {
		return xerrors.NewTaggedf[errkind.InvalidMode]("remove requires write access, target is %s", t.mode)
	}

	var result *multierror.Error

	for _, p := range t.Platforms() {
		if err := t.RemovePlatform(ctx, p); err != nil {
			result = multierror.Append(result, fmt.Errorf("error removing platform %s: %w", p, err))
		}
	}

	if err := efi.RemoveCruft(t.bootDir, t.opts.Printf); err != nil {
		result = multierror.Append(result, err)
	}

	if err := os.RemoveAll(t.GrubDir()); err != nil {
		result = multierror.Append(result, fmt.Errorf("error removing grub directory: %w", err))
	}

	return result.ErrorOrNil()
}

func (t *Target) mountProbe(ctx context.Context) (*mountinfo.Mount, error) {
	mount, err := t.opts.MountProbe(ctx, t.bootDir)
	if err != nil {
		return nil, xerrors.NewTaggedf[errkind.MountProbe]("error resolving filesystem of %s: %w", t.bootDir, err)
	}

	return mount, nil
}
