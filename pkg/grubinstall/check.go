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

	"github.com/siderolabs/go-grubinstall/internal/pkg/fsutil"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/bios"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/efi"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/errkind"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/source"
)

// CheckOptions modify a consistency check.
type CheckOptions struct {
	// AutoFix is accepted for interface compatibility but checking stays
	// strictly diagnostic: nothing on disk is modified either way.
	AutoFix bool
}

// Finding is one observed inconsistency.
type Finding struct {
	// Platform the finding concerns, empty when it spans the whole target.
	Platform platform.Type

	// Path of the offending file or directory, when one exists.
	Path string

	// Message describes the problem.
	Message string
}

// String implements fmt.Stringer.
func (f Finding) String() string {
	switch {
	case f.Platform != "" && f.Path != "":
		return fmt.Sprintf("%s: %s (%s)", f.Platform, f.Message, f.Path)
	case f.Platform != "":
		return fmt.Sprintf("%s: %s", f.Platform, f.Message)
	case f.Path != "":
		return fmt.Sprintf("%s (%s)", f.Message, f.Path)
	default:
		return f.Message
	}
}

// Report is the outcome of a consistency check.
type Report struct {
	// Findings are the observed inconsistencies.
	Findings []Finding

	// Err aggregates I/O failures that kept parts of the check from running.
	Err *multierror.Error
}

// Ok reports whether the check came back clean.
func (r *Report) Ok() bool {
	return len(r.Findings) == 0 && r.Err.ErrorOrNil() == nil
}

// Check re-verifies the recorded state against the filesystem and reports
// inconsistencies: unrecorded platform directories, recorded platforms whose
// directories vanished, verification downgrades, and stray EFI loaders.
// In-memory records are refreshed to what verification found; the disk is
// never modified.
//
//nolint:gocyclo
func (t *Target) Check(ctx context.Context, opts CheckOptions) (*Report, error) {
	if !t.mode.CanRead() {
		return nil, xerrors.NewTaggedf[errkind.InvalidMode]("check requires read access, target is %s", t.mode)
	}

	if opts.AutoFix {
		t.opts.Printf("auto-fix requested: checking is diagnostic only, nothing will be modified")
	}

	report := &Report{}

	grubDir := t.GrubDir()

	entries, err := os.ReadDir(grubDir)

	switch {
	case errors.Is(err, os.ErrNotExist):
		if len(t.platforms) > 0 {
			report.Findings = append(report.Findings, Finding{
				Path:    grubDir,
				Message: fmt.Sprintf("grub directory is gone while %d platform(s) are recorded", len(t.platforms)),
			})
		}
	case err != nil:
		report.Err = multierror.Append(report.Err, err)
	default:
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			p, parseErr := platform.Parse(entry.Name())
			if parseErr != nil {
				continue
			}

			if _, ok := t.platforms[p]; !ok {
				report.Findings = append(report.Findings, Finding{
					Platform: p,
					Path:     filepath.Join(grubDir, entry.Name()),
					Message:  "platform directory exists but is not recorded",
				})
			}
		}
	}

	for _, p := range t.Platforms() {
		dir := filepath.Join(grubDir, string(p))

		if _, statErr := os.Stat(dir); errors.Is(statErr, os.ErrNotExist) {
			report.Findings = append(report.Findings, Finding{
				Platform: p,
				Path:     dir,
				Message:  "platform directory vanished since the last scan",
			})
		} else if statErr != nil {
			report.Err = multierror.Append(report.Err, statErr)
		}

		previous := t.platforms[p]

		info, verifyErr := t.strategy(p).verify(ctx, t, p)
		if verifyErr != nil {
			report.Err = multierror.Append(report.Err, fmt.Errorf("error verifying platform %s: %w", p, verifyErr))

			continue
		}

		if info.Status != previous.Status {
			report.Findings = append(report.Findings, Finding{
				Platform: p,
				Message:  fmt.Sprintf("status changed from %s to %s", previous.Status, info.Status),
			})
		}

		t.platforms[p] = info
	}

	orphans, err := t.strayEFILoaders()
	if err != nil {
		report.Err = multierror.Append(report.Err, err)
	}

	report.Findings = append(report.Findings, orphans...)

	return report, nil
}

// strayEFILoaders flags entries under EFI/BOOT that no recorded platform
// accounts for.
func (t *Target) strayEFILoaders() ([]Finding, error) {
	bootDir := filepath.Join(t.bootDir, efi.DirName, efi.BootDirName)

	entries, err := os.ReadDir(bootDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	known := map[string]platform.Type{}

	for _, p := range platform.All() {
		if name, nameErr := p.EFIBootFileName(); nameErr == nil {
			known[name] = p
		}
	}

	var findings []Finding

	for _, entry := range entries {
		path := filepath.Join(bootDir, entry.Name())

		if entry.IsDir() {
			findings = append(findings, Finding{
				Path:    path,
				Message: "unexpected directory in the EFI boot directory",
			})

			continue
		}

		p, ok := known[entry.Name()]
		if !ok {
			findings = append(findings, Finding{
				Path:    path,
				Message: "unexpected file in the EFI boot directory",
			})

			continue
		}

		if _, recorded := t.platforms[p]; !recorded {
			findings = append(findings, Finding{
				Platform: p,
				Path:     path,
				Message:  "EFI loader present but its platform is not recorded",
			})
		}
	}

	return findings, nil
}

// CheckWithSource runs Check and additionally verifies that the source still
// provides what the recorded platforms were installed from, catching payload
// drift between the source and the target.
func (t *Target) CheckWithSource(ctx context.Context, src source.Source, opts CheckOptions) (*Report, error) {
	report, err := t.Check(ctx, opts)
	if err != nil {
		return nil, err
	}

	for _, p := range t.Platforms() {
		srcDir, srcErr := src.PlatformDir(p)
		if srcErr != nil {
			report.Findings = append(report.Findings, Finding{
				Platform: p,
				Message:  "source no longer provides the platform payload",
			})

			continue
		}

		if p.Family() != platform.FamilyBIOS {
			continue
		}

		same, cmpErr := fsutil.SameContent(
			filepath.Join(srcDir, bios.BootImageName),
			filepath.Join(t.GrubDir(), bios.BootImageName),
		)

		switch {
		case errors.Is(cmpErr, os.ErrNotExist):
			report.Findings = append(report.Findings, Finding{
				Platform: p,
				Message:  "boot image is missing from the source or the grub directory",
			})
		case cmpErr != nil:
			report.Err = multierror.Append(report.Err, cmpErr)
		case !same:
			report.Findings = append(report.Findings, Finding{
				Platform: p,
				Path:     filepath.Join(t.GrubDir(), bios.BootImageName),
				Message:  "boot image drifted from the source",
			})
		}
	}

	return report, nil
}
