// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package grubinstall

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/siderolabs/gen/xerrors"
	"github.com/siderolabs/go-copy/copy"

	"github.com/siderolabs/go-grubinstall/internal/pkg/fsutil"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/errkind"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/source"
)

// Asset subdirectories of the grub tree.
const (
	localeDirName = "locale"
	fontsDirName  = "fonts"
	themesDirName = "themes"
)

// AssetRequest names optional GRUB data to place into or remove from the
// grub tree; the entry "*" selects everything available.
type AssetRequest struct {
	// Locales are language codes whose message catalogs to handle.
	Locales []string

	// Fonts are font names (with or without the .pf2 suffix).
	Fonts []string

	// Themes are theme directory names.
	Themes []string
}

func expandSelection(selection []string, enumerate func() ([]string, error)) ([]string, error) {
	if slices.Contains(selection, "*") {
		return enumerate()
	}

	return selection, nil
}

// InstallData copies optional GRUB data (message catalogs, fonts, themes)
// from the source into the grub tree.
//
//nolint:gocyclo
func (t *Target) InstallData(src source.AssetSource, req AssetRequest) error {
	if !t.mode.CanWrite() {
		return xerrors.NewTaggedf[errkind.InvalidMode]("install requires write access, target is %s", t.mode)
	}

	locales, err := expandSelection(req.Locales, src.Locales)
	if err != nil {
		return err
	}

	for _, lang := range locales {
		catalog, err := src.LocaleFile(lang)
		if err != nil {
			return err
		}

		dst := filepath.Join(t.GrubDir(), localeDirName, lang+".mo")

		if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}

		t.opts.Printf("installing message catalog %s", lang)

		if err = copy.File(catalog, dst); err != nil {
			return fmt.Errorf("error copying message catalog %s: %w", lang, err)
		}
	}

	fonts, err := expandSelection(req.Fonts, src.Fonts)
	if err != nil {
		return err
	}

	for _, name := range fonts {
		font, err := src.FontFile(name)
		if err != nil {
			return err
		}

		dst := filepath.Join(t.GrubDir(), fontsDirName, filepath.Base(font))

		if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}

		t.opts.Printf("installing font %s", name)

		if err = copy.File(font, dst); err != nil {
			return fmt.Errorf("error copying font %s: %w", name, err)
		}
	}

	themes, err := expandSelection(req.Themes, src.Themes)
	if err != nil {
		return err
	}

	for _, name := range themes {
		theme, err := src.ThemeDir(name)
		if err != nil {
			return err
		}

		dst := filepath.Join(t.GrubDir(), themesDirName, name)

		if err = os.RemoveAll(dst); err != nil {
			return err
		}

		t.opts.Printf("installing theme %s", name)

		if err = copy.Dir(theme, dst); err != nil {
			return fmt.Errorf("error copying theme %s: %w", name, err)
		}
	}

	return nil
}

// RemoveData deletes optional GRUB data from the grub tree and prunes asset
// directories left empty; "*" clears a whole category. Entries that are not
// present are skipped.
func (t *Target) RemoveData(req AssetRequest) error {
	if !t.mode.CanWrite() {
		return xerrors.NewTaggedf[errkind.InvalidMode]("remove requires write access, target is %s", t.mode)
	}

	if err := t.removeAssets(req.Locales, localeDirName, func(lang string) string {
		return lang + ".mo"
	}); err != nil {
		return err
	}

	if err := t.removeAssets(req.Fonts, fontsDirName, func(name string) string {
		if !strings.HasSuffix(name, ".pf2") {
			name += ".pf2"
		}

		return name
	}); err != nil {
		return err
	}

	return t.removeAssets(req.Themes, themesDirName, func(name string) string {
		return name
	})
}

func (t *Target) removeAssets(selection []string, dirName string, entryName func(string) string) error {
	dir := filepath.Join(t.GrubDir(), dirName)

	if slices.Contains(selection, "*") {
		t.opts.Printf("removing %s", dir)

		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("error removing %s: %w", dir, err)
		}

		return nil
	}

	for _, name := range selection {
		path := filepath.Join(dir, entryName(name))

		t.opts.Printf("removing %s", path)

		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("error removing %s: %w", path, err)
		}
	}

	if len(selection) > 0 {
		return fsutil.PruneIfEmpty(dir)
	}

	return nil
}
