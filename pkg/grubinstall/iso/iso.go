// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package iso masters a staged boot directory into an ISO9660 image.
//
// Boot payloads are first installed into a staging directory target; this
// package turns that directory into optical media. EFI firmware boots the
// result through the removable-media loaders staged under EFI/BOOT.
package iso

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kdomanski/iso9660"
)

// DefaultLabel is the volume label used when no usable label is supplied.
const DefaultLabel = "GRUB"

// maxLabelLength is the ISO9660 volume identifier limit.
const maxLabelLength = 32

// Create writes the contents of dir into an ISO9660 image at outputPath.
//
// A half-written image is removed on failure, so outputPath either holds a
// complete image or nothing.
func Create(dir, outputPath, label string, printf func(string, ...any)) error {
	if printf == nil {
		printf = func(string, ...any) {}
	}

	writer, err := iso9660.NewWriter()
	if err != nil {
		return fmt.Errorf("error creating ISO writer: %w", err)
	}

	defer writer.Cleanup() //nolint:errcheck

	if err = writer.AddLocalDirectory(dir, "/"); err != nil {
		return fmt.Errorf("error staging %s: %w", dir, err)
	}

	if err = os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(outputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	printf("writing %s (volume label %q)", outputPath, label)

	if err = writer.WriteTo(out, label); err != nil {
		out.Close()           //nolint:errcheck
		os.Remove(outputPath) //nolint:errcheck

		return fmt.Errorf("error writing ISO image: %w", err)
	}

	if err = out.Close(); err != nil {
		os.Remove(outputPath) //nolint:errcheck

		return fmt.Errorf("error finalizing ISO image: %w", err)
	}

	return nil
}

// VolumeLabel builds a valid ISO9660 volume label out of parts: joined with
// underscores, uppercased, anything outside [A-Z0-9_] replaced with an
// underscore, truncated to the 32-character limit. Empty input yields
// DefaultLabel.
func VolumeLabel(parts ...string) string {
	var b strings.Builder

	for _, r := range strings.Join(parts, "_") {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}

		if b.Len() >= maxLabelLength {
			break
		}
	}

	if b.Len() == 0 {
		return DefaultLabel
	}

	return b.String()
}
