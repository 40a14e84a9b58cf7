// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package grubinstall

import (
	"context"

	"github.com/siderolabs/gen/xerrors"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/bios"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/efi"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/errkind"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
)

// installPaths carries the payload locations the common install phase
// resolved for the per-family strategies.
type installPaths struct {
	// sourceDir is the source's platform payload directory.
	sourceDir string

	// corePath is the core image built into the grub tree.
	corePath string
}

// strategy is the per-(target kind, platform family) behavior behind the
// Target operations. The table is total: every family maps to a strategy for
// every constructible kind, possibly one that only reports the combination
// as unsupported.
type strategy interface {
	verify(ctx context.Context, t *Target, p platform.Type) (platform.InstallInfo, error)
	install(ctx context.Context, t *Target, p platform.Type, paths installPaths) (platform.InstallInfo, error)
	remove(ctx context.Context, t *Target, p platform.Type) error
}

func strategiesFor(kind Kind) map[platform.Family]strategy {
	switch kind {
	case KindMountedDevice:
		return map[platform.Family]strategy{
			platform.FamilyBIOS:  biosStrategy{installMBR: true},
			platform.FamilyEFI:   efiStrategy{},
			platform.FamilyOther: otherStrategy{},
		}
	case KindStagingDir:
		return map[platform.Family]strategy{
			platform.FamilyBIOS:  biosStrategy{installMBR: false},
			platform.FamilyEFI:   efiStrategy{},
			platform.FamilyOther: otherStrategy{},
		}
	default:
		return map[platform.Family]strategy{
			platform.FamilyBIOS:  unsupportedStrategy{kind: kind},
			platform.FamilyEFI:   unsupportedStrategy{kind: kind},
			platform.FamilyOther: unsupportedStrategy{kind: kind},
		}
	}
}

// biosStrategy installs boot code through the bios package.
type biosStrategy struct {
	// installMBR is false for device-less targets: the payload is staged into
	// the grub tree, no boot sector is written.
	installMBR bool
}

func (s biosStrategy) verify(ctx context.Context, t *Target, _ platform.Type) (platform.InstallInfo, error) {
	req := bios.VerifyRequest{GrubDir: t.GrubDir()}

	if s.installMBR {
		disk, err := t.opts.OpenDisk(ctx, t.devPath, false)
		if err != nil {
			return platform.InstallInfo{}, err
		}

		defer disk.Close() //nolint:errcheck

		req.Disk = disk
	}

	return bios.Verify(req)
}

func (s biosStrategy) install(ctx context.Context, t *Target, _ platform.Type, paths installPaths) (platform.InstallInfo, error) {
	req := bios.InstallRequest{
		GrubDir:   t.GrubDir(),
		SourceDir: paths.sourceDir,
		CorePath:  paths.corePath,
		Printf:    t.opts.Printf,
	}

	if !s.installMBR {
		return bios.Install(req)
	}

	ok, err := t.opts.IsWholeDisk(t.devPath)
	if err != nil {
		return platform.InstallInfo{}, err
	}

	if !ok {
		return platform.InstallInfo{}, xerrors.NewTaggedf[errkind.InvalidDevice]("%s is a partition, expected a whole disk", t.devPath)
	}

	disk, err := t.opts.OpenDisk(ctx, t.devPath, true)
	if err != nil {
		return platform.InstallInfo{}, err
	}

	defer disk.Close() //nolint:errcheck

	info, err := t.opts.ProbeDisk(disk)
	if err != nil {
		return platform.InstallInfo{}, err
	}

	req.Disk = disk
	req.DiskInfo = info

	return bios.Install(req)
}

func (s biosStrategy) remove(context.Context, *Target, platform.Type) error {
	return bios.Remove()
}

// efiStrategy installs removable-media loaders through the efi package; it
// is pure file manipulation, identical across target kinds.
type efiStrategy struct{}

func (efiStrategy) verify(_ context.Context, t *Target, p platform.Type) (platform.InstallInfo, error) {
	return efi.Verify(t.bootDir, t.GrubDir(), p)
}

func (efiStrategy) install(_ context.Context, t *Target, p platform.Type, _ installPaths) (platform.InstallInfo, error) {
	return efi.Install(t.bootDir, t.GrubDir(), p, t.opts.Printf)
}

func (efiStrategy) remove(_ context.Context, t *Target, p platform.Type) error {
	return efi.Remove(t.bootDir, p, t.opts.Printf)
}

// otherStrategy covers platform families without a boot mechanism handler:
// their trees are recognized on disk but cannot be verified or installed.
type otherStrategy struct{}

func (otherStrategy) verify(context.Context, *Target, platform.Type) (platform.InstallInfo, error) {
	// present but not verifiable
	return platform.InstallInfo{Status: platform.StatusExist}, nil
}

func (otherStrategy) install(_ context.Context, _ *Target, p platform.Type, _ installPaths) (platform.InstallInfo, error) {
	return platform.InstallInfo{}, xerrors.NewTaggedf[errkind.Unsupported]("installing platform %s is not supported", p)
}

func (otherStrategy) remove(context.Context, *Target, platform.Type) error {
	// common directory removal is all there is
	return nil
}

// unsupportedStrategy rejects everything for target kinds that cannot be
// operated on.
type unsupportedStrategy struct {
	kind Kind
}

func (s unsupportedStrategy) verify(context.Context, *Target, platform.Type) (platform.InstallInfo, error) {
	return platform.InstallInfo{}, xerrors.NewTaggedf[errkind.Unsupported]("%s targets are not supported", s.kind)
}

func (s unsupportedStrategy) install(_ context.Context, _ *Target, _ platform.Type, _ installPaths) (platform.InstallInfo, error) {
	return platform.InstallInfo{}, xerrors.NewTaggedf[errkind.Unsupported]("%s targets are not supported", s.kind)
}

func (s unsupportedStrategy) remove(context.Context, *Target, platform.Type) error {
	return xerrors.NewTaggedf[errkind.Unsupported]("%s targets are not supported", s.kind)
}
