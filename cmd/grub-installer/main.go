// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package main is the entrypoint of the grub-installer command.
package main

import "github.com/siderolabs/go-grubinstall/cmd/grub-installer/cmd"

func main() {
	cmd.Execute()
}
