// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/siderolabs/go-cmd/pkg/cmd"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
)

// Default locations of a host GRUB installation.
const (
	DefaultPlatformRoot = "/usr/lib/grub"
	DefaultLocaleRoot   = "/usr/share/locale"
	DefaultFontRoot     = "/usr/share/grub"
	DefaultThemeRoot    = "/usr/share/grub/themes"
)

// HostSource reads the boot payload from a GRUB installation on the host and
// builds core images with grub-mkimage.
type HostSource struct {
	platformRoot string
	localeRoot   string
	fontRoot     string
	themeRoot    string
	mkimage      string
}

// HostOption customizes a HostSource.
type HostOption func(*HostSource)

// WithPlatformRoot overrides the directory holding per-platform payloads.
func WithPlatformRoot(root string) HostOption {
	return func(s *HostSource) {
		s.platformRoot = root
	}
}

// WithLocaleRoot overrides the directory holding message catalogs.
func WithLocaleRoot(root string) HostOption {
	return func(s *HostSource) {
		s.localeRoot = root
	}
}

// WithFontRoot overrides the directory holding .pf2 fonts.
func WithFontRoot(root string) HostOption {
	return func(s *HostSource) {
		s.fontRoot = root
	}
}

// WithThemeRoot overrides the directory holding themes.
func WithThemeRoot(root string) HostOption {
	return func(s *HostSource) {
		s.themeRoot = root
	}
}

// WithMkimage overrides the grub-mkimage binary.
func WithMkimage(path string) HostOption {
	return func(s *HostSource) {
		s.mkimage = path
	}
}

// NewHostSource builds a HostSource, validating that the platform root exists.
func NewHostSource(opts ...HostOption) (*HostSource, error) {
	s := &HostSource{
		platformRoot: DefaultPlatformRoot,
		localeRoot:   DefaultLocaleRoot,
		fontRoot:     DefaultFontRoot,
		themeRoot:    DefaultThemeRoot,
		mkimage:      "grub-mkimage",
	}

	for _, opt := range opts {
		opt(s)
	}

	if _, err := os.Stat(s.platformRoot); err != nil {
		return nil, fmt.Errorf("grub platform root not available: %w", err)
	}

	return s, nil
}

// PlatformDir implements Source.
func (s *HostSource) PlatformDir(p platform.Type) (string, error) {
	dir := filepath.Join(s.platformRoot, string(p))

	st, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("no payload for platform %q: %w", p, err)
	}

	if !st.IsDir() {
		return "", fmt.Errorf("payload path %q is not a directory", dir)
	}

	return dir, nil
}

// MakeImage implements Source by running grub-mkimage.
func (s *HostSource) MakeImage(ctx context.Context, req MakeImageRequest) error {
	args := []string{
		"--directory", req.PlatformDir,
		"--format", req.Target,
		"--config", req.LoadConfigPath,
		"--output", req.OutputPath,
	}

	if req.Prefix != "" {
		args = append(args, "--prefix", req.Prefix)
	}

	args = append(args, req.Modules...)

	if _, err := cmd.RunContext(ctx, s.mkimage, args...); err != nil {
		return fmt.Errorf("failed to build core image: %w", err)
	}

	return nil
}

// Locales implements AssetSource.
func (s *HostSource) Locales() ([]string, error) {
	entries, err := os.ReadDir(s.localeRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var langs []string

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		if _, err := os.Stat(s.catalogPath(entry.Name())); err == nil {
			langs = append(langs, entry.Name())
		}
	}

	slices.Sort(langs)

	return langs, nil
}

// LocaleFile implements AssetSource.
func (s *HostSource) LocaleFile(lang string) (string, error) {
	path := s.catalogPath(lang)

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no message catalog for %q: %w", lang, err)
	}

	return path, nil
}

func (s *HostSource) catalogPath(lang string) string {
	return filepath.Join(s.localeRoot, lang, "LC_MESSAGES", "grub.mo")
}

// Fonts implements AssetSource.
func (s *HostSource) Fonts() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.fontRoot, "*.pf2"))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(paths))

	for _, path := range paths {
		names = append(names, strings.TrimSuffix(filepath.Base(path), ".pf2"))
	}

	slices.Sort(names)

	return names, nil
}

// FontFile implements AssetSource.
func (s *HostSource) FontFile(name string) (string, error) {
	if !strings.HasSuffix(name, ".pf2") {
		name += ".pf2"
	}

	path := filepath.Join(s.fontRoot, name)

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no font %q: %w", name, err)
	}

	return path, nil
}

// Themes implements AssetSource.
func (s *HostSource) Themes() ([]string, error) {
	entries, err := os.ReadDir(s.themeRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var names []string

	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	slices.Sort(names)

	return names, nil
}

// ThemeDir implements AssetSource.
func (s *HostSource) ThemeDir(name string) (string, error) {
	dir := filepath.Join(s.themeRoot, name)

	st, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("no theme %q: %w", name, err)
	}

	if !st.IsDir() {
		return "", fmt.Errorf("theme path %q is not a directory", dir)
	}

	return dir, nil
}
