// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/siderolabs/go-pointer"
	"gopkg.in/yaml.v3"
)

// Profile is the YAML configuration document backing the --config flag.
// Explicit flags and arguments take precedence over profile values.
type Profile struct {
	BootDir string `yaml:"bootDir,omitempty"`
	Device  string `yaml:"device,omitempty"`
	Source  string `yaml:"source,omitempty"`
	Mkimage string `yaml:"mkimage,omitempty"`

	// Platforms to install, in order.
	Platforms []string `yaml:"platforms,omitempty"`

	AllowFloppy *bool `yaml:"allowFloppy,omitempty"`
	RSCodes     *bool `yaml:"rsCodes,omitempty"`

	// Optional boot-time assets installed alongside the platforms.
	Locales []string `yaml:"locales,omitempty"`
	Fonts   []string `yaml:"fonts,omitempty"`
	Themes  []string `yaml:"themes,omitempty"`
}

// AllowFloppyEnabled derefs the AllowFloppy pointer.
func (p Profile) AllowFloppyEnabled() bool {
	return pointer.SafeDeref(p.AllowFloppy)
}

// RSCodesEnabled derefs the RSCodes pointer.
func (p Profile) RSCodesEnabled() bool {
	return pointer.SafeDeref(p.RSCodes)
}

// loadProfile reads a Profile from path, "-" meaning stdin.
func loadProfile(path string) (*Profile, error) {
	var r io.Reader

	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		defer f.Close() //nolint:errcheck

		r = f
	}

	var prof Profile

	if err := yaml.NewDecoder(r).Decode(&prof); err != nil {
		return nil, fmt.Errorf("error decoding the configuration profile: %w", err)
	}

	return &prof, nil
}
