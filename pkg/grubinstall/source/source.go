// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package source provides the boot payload the installer consumes: the
// per-platform image files, the core image builder, and the optional
// locale/font/theme assets.
package source

import (
	"context"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
)

// MakeImageRequest describes one core image build.
type MakeImageRequest struct {
	// PlatformDir is the directory holding the platform's modules.
	PlatformDir string

	// Target is the image builder's target name for the platform.
	Target string

	// LoadConfigPath is the path of the load configuration embedded into the
	// image.
	LoadConfigPath string

	// Prefix is the boot-time directory prefix embedded into the image.
	Prefix string

	// Modules are the module names linked into the image, in load order.
	Modules []string

	// OutputPath is where the built core image is written.
	OutputPath string
}

// Source supplies per-platform payload files and builds core images.
type Source interface {
	// PlatformDir returns the directory holding the platform's payload files
	// (boot images, modules, module lists).
	PlatformDir(p platform.Type) (string, error)

	// MakeImage builds a core image.
	MakeImage(ctx context.Context, req MakeImageRequest) error
}

// AssetSource supplies optional boot-time assets.
type AssetSource interface {
	// Locales enumerates the languages a message catalog is available for.
	Locales() ([]string, error)

	// LocaleFile returns the path of the message catalog for a language.
	LocaleFile(lang string) (string, error)

	// Fonts enumerates the available font names.
	Fonts() ([]string, error)

	// FontFile returns the path of a font file.
	FontFile(name string) (string, error)

	// Themes enumerates the available theme names.
	Themes() ([]string, error)

	// ThemeDir returns the directory of a theme.
	ThemeDir(name string) (string, error)
}
