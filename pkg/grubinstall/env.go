// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package grubinstall

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/siderolabs/gen/xerrors"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/envblock"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/errkind"
)

// EnvFilePath returns the environment block location under the grub tree.
func (t *Target) EnvFilePath() string {
	return filepath.Join(t.GrubDir(), EnvFileName)
}

// TouchEnvFile writes an empty GRUB environment block to <grub>/grubenv
// unless the file already exists.
func (t *Target) TouchEnvFile() error {
	if !t.mode.CanWrite() {
		return xerrors.NewTaggedf[errkind.InvalidMode]("env file creation requires write access, target is %s", t.mode)
	}

	path := t.EnvFilePath()

	_, err := os.Stat(path)

	switch {
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return err
	}

	if err = os.MkdirAll(t.GrubDir(), 0o755); err != nil {
		return err
	}

	data, err := envblock.New().Marshal()
	if err != nil {
		return err
	}

	t.opts.Printf("creating %s", path)

	return os.WriteFile(path, data, 0o644)
}

// RemoveEnvFile deletes the environment block; a missing file is a no-op.
func (t *Target) RemoveEnvFile() error {
	if !t.mode.CanWrite() {
		return xerrors.NewTaggedf[errkind.InvalidMode]("env file removal requires write access, target is %s", t.mode)
	}

	if err := os.Remove(t.EnvFilePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// ReadEnv loads the environment block; a missing file reads as an empty
// block, same as GRUB treats it at boot.
func (t *Target) ReadEnv() (*envblock.Block, error) {
	if !t.mode.CanRead() {
		return nil, xerrors.NewTaggedf[errkind.InvalidMode]("env file access requires read access, target is %s", t.mode)
	}

	data, err := os.ReadFile(t.EnvFilePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return envblock.New(), nil
		}

		return nil, err
	}

	return envblock.Unmarshal(data)
}

// WriteEnv stores the environment block, creating the file as needed.
func (t *Target) WriteEnv(blk *envblock.Block) error {
	if !t.mode.CanWrite() {
		return xerrors.NewTaggedf[errkind.InvalidMode]("env file update requires write access, target is %s", t.mode)
	}

	data, err := blk.Marshal()
	if err != nil {
		return err
	}

	if err = os.MkdirAll(t.GrubDir(), 0o755); err != nil {
		return err
	}

	return os.WriteFile(t.EnvFilePath(), data, 0o644)
}
