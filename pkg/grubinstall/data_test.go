// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package grubinstall_test

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/errkind"
)

// fakeAssets serves locales, fonts and themes out of a temporary directory.
type fakeAssets struct {
	locales map[string]string
	fonts   map[string]string
	themes  map[string]string
}

func newFakeAssets(t *testing.T) *fakeAssets {
	t.Helper()

	root := t.TempDir()

	s := &fakeAssets{
		locales: map[string]string{},
		fonts:   map[string]string{},
		themes:  map[string]string{},
	}

	for _, lang := range []string{"de", "fr"} {
		path := filepath.Join(root, lang+".mo")
		require.NoError(t, os.WriteFile(path, []byte("catalog "+lang), 0o644))

		s.locales[lang] = path
	}

	fontPath := filepath.Join(root, "unicode.pf2")
	require.NoError(t, os.WriteFile(fontPath, []byte("font"), 0o644))

	s.fonts["unicode"] = fontPath

	themeDir := filepath.Join(root, "starfield")
	require.NoError(t, os.MkdirAll(filepath.Join(themeDir, "icons"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(themeDir, "theme.txt"), []byte("title-text: \"\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(themeDir, "icons", "linux.png"), []byte("png"), 0o644))

	s.themes["starfield"] = themeDir

	return s
}

func (s *fakeAssets) lookup(kind string, m map[string]string, name string) (string, error) {
	if path, ok := m[name]; ok {
		return path, nil
	}

	return "", fmt.Errorf("no %s %q", kind, name)
}

func (s *fakeAssets) names(m map[string]string) []string {
	names := make([]string, 0, len(m))

	for name := range m {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (s *fakeAssets) Locales() ([]string, error) { return s.names(s.locales), nil }

func (s *fakeAssets) LocaleFile(lang string) (string, error) {
	return s.lookup("message catalog", s.locales, lang)
}

func (s *fakeAssets) Fonts() ([]string, error) { return s.names(s.fonts), nil }

func (s *fakeAssets) FontFile(name string) (string, error) {
	return s.lookup("font", s.fonts, strings.TrimSuffix(name, ".pf2"))
}

func (s *fakeAssets) Themes() ([]string, error) { return s.names(s.themes), nil }

func (s *fakeAssets) ThemeDir(name string) (string, error) {
	return s.lookup("theme", s.themes, name)
}

func TestInstallData(t *testing.T) {
	t.Parallel()

	assets := newFakeAssets(t)

	tgt, err := grubinstall.NewStagingDir(t.Context(), t.TempDir(), grubinstall.ModeReadWrite)
	require.NoError(t, err)

	require.NoError(t, tgt.InstallData(assets, grubinstall.AssetRequest{
		Locales: []string{"de"},
		Fonts:   []string{"unicode"},
		Themes:  []string{"starfield"},
	}))

	grubDir := tgt.GrubDir()

	assert.FileExists(t, filepath.Join(grubDir, "locale", "de.mo"))
	assert.NoFileExists(t, filepath.Join(grubDir, "locale", "fr.mo"))
	assert.FileExists(t, filepath.Join(grubDir, "fonts", "unicode.pf2"))
	assert.FileExists(t, filepath.Join(grubDir, "themes", "starfield", "theme.txt"))
	assert.FileExists(t, filepath.Join(grubDir, "themes", "starfield", "icons", "linux.png"))

	catalog, err := os.ReadFile(filepath.Join(grubDir, "locale", "de.mo"))
	require.NoError(t, err)

	assert.Equal(t, "catalog de", string(catalog))
}

func TestInstallDataEverything(t *testing.T) {
	t.Parallel()

	assets := newFakeAssets(t)

	tgt, err := grubinstall.NewStagingDir(t.Context(), t.TempDir(), grubinstall.ModeReadWrite)
	require.NoError(t, err)

	require.NoError(t, tgt.InstallData(assets, grubinstall.AssetRequest{
		Locales: []string{"*"},
	}))

	assert.FileExists(t, filepath.Join(tgt.GrubDir(), "locale", "de.mo"))
	assert.FileExists(t, filepath.Join(tgt.GrubDir(), "locale", "fr.mo"))
}

func TestInstallDataReplacesTheme(t *testing.T) {
	t.Parallel()

	assets := newFakeAssets(t)
	bootDir := t.TempDir()

	staleFile := filepath.Join(bootDir, "grub", "themes", "starfield", "stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(staleFile), 0o755))
	require.NoError(t, os.WriteFile(staleFile, []byte("old"), 0o644))

	tgt, err := grubinstall.NewStagingDir(t.Context(), bootDir, grubinstall.ModeReadWrite)
	require.NoError(t, err)

	require.NoError(t, tgt.InstallData(assets, grubinstall.AssetRequest{
		Themes: []string{"starfield"},
	}))

	assert.NoFileExists(t, staleFile)
	assert.FileExists(t, filepath.Join(tgt.GrubDir(), "themes", "starfield", "theme.txt"))
}

func TestInstallDataUnknownEntry(t *testing.T) {
	t.Parallel()

	assets := newFakeAssets(t)

	tgt, err := grubinstall.NewStagingDir(t.Context(), t.TempDir(), grubinstall.ModeWrite)
	require.NoError(t, err)

	err = tgt.InstallData(assets, grubinstall.AssetRequest{Locales: []string{"tlh"}})
	assert.ErrorContains(t, err, `no message catalog "tlh"`)
}

func TestRemoveData(t *testing.T) {
	t.Parallel()

	assets := newFakeAssets(t)

	tgt, err := grubinstall.NewStagingDir(t.Context(), t.TempDir(), grubinstall.ModeReadWrite)
	require.NoError(t, err)

	require.NoError(t, tgt.InstallData(assets, grubinstall.AssetRequest{
		Locales: []string{"*"},
		Fonts:   []string{"*"},
		Themes:  []string{"*"},
	}))

	grubDir := tgt.GrubDir()

	// removing one entry keeps the directory while siblings remain
	require.NoError(t, tgt.RemoveData(grubinstall.AssetRequest{Locales: []string{"de"}}))

	assert.NoFileExists(t, filepath.Join(grubDir, "locale", "de.mo"))
	assert.FileExists(t, filepath.Join(grubDir, "locale", "fr.mo"))

	// removing the last entry prunes the directory
	require.NoError(t, tgt.RemoveData(grubinstall.AssetRequest{Locales: []string{"fr"}}))
	assert.NoDirExists(t, filepath.Join(grubDir, "locale"))

	// font names work without the .pf2 suffix
	require.NoError(t, tgt.RemoveData(grubinstall.AssetRequest{Fonts: []string{"unicode"}}))
	assert.NoDirExists(t, filepath.Join(grubDir, "fonts"))

	// a wildcard clears the whole category
	require.NoError(t, tgt.RemoveData(grubinstall.AssetRequest{Themes: []string{"*"}}))
	assert.NoDirExists(t, filepath.Join(grubDir, "themes"))

	// absent entries are skipped
	require.NoError(t, tgt.RemoveData(grubinstall.AssetRequest{Locales: []string{"de"}}))
}

func TestDataModeChecks(t *testing.T) {
	t.Parallel()

	assets := newFakeAssets(t)

	tgt, err := grubinstall.NewStagingDir(t.Context(), t.TempDir(), grubinstall.ModeRead)
	require.NoError(t, err)

	assert.True(t, errkind.IsInvalidMode(tgt.InstallData(assets, grubinstall.AssetRequest{})))
	assert.True(t, errkind.IsInvalidMode(tgt.RemoveData(grubinstall.AssetRequest{})))
}
