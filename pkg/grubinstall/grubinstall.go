// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package grubinstall installs, verifies and removes GRUB boot payloads on
// mounted block devices and staging directories.
//
// A Target is the central handle: constructing one scans the existing grub
// tree and verifies every platform found, install/remove mutate the tree and
// (for BIOS on mounted devices) the disk, and the recorded state can be
// inspected at any point. The mechanics per boot family live in the bios and
// efi subpackages; this package routes each operation through a strategy
// table keyed by (target kind, platform family) built at construction time,
// so unsupported combinations fail predictably instead of halfway through an
// install.
package grubinstall

import "fmt"

// GrubDirName is the subdirectory of the boot directory holding the grub tree.
const GrubDirName = "grub"

// EnvFileName is the GRUB environment block file under the grub directory.
const EnvFileName = "grubenv"

// Kind enumerates the target container types.
type Kind int

const (
	// KindMountedDevice is a boot directory on a mounted filesystem backed by
	// a block device.
	KindMountedDevice Kind = iota

	// KindOpticalImage is an El Torito boot image; recognized but not
	// implemented.
	KindOpticalImage

	// KindStagingDir is a plain directory without a backing device, typically
	// staged for ISO mastering.
	KindStagingDir
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindMountedDevice:
		return "mounted-device"
	case KindOpticalImage:
		return "optical-image"
	case KindStagingDir:
		return "staging-dir"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// AccessMode bounds what a Target may do.
type AccessMode int

const (
	// ModeRead allows inspection only.
	ModeRead AccessMode = iota

	// ModeWrite allows mutation without the initial state scan.
	ModeWrite

	// ModeReadWrite allows everything.
	ModeReadWrite
)

// String implements fmt.Stringer.
func (m AccessMode) String() string {
	switch m {
	case ModeRead:
		return "read-only"
	case ModeWrite:
		return "write-only"
	case ModeReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("AccessMode(%d)", int(m))
	}
}

// CanRead reports whether inspection operations are allowed.
func (m AccessMode) CanRead() bool {
	return m == ModeRead || m == ModeReadWrite
}

// CanWrite reports whether mutating operations are allowed.
func (m AccessMode) CanWrite() bool {
	return m == ModeWrite || m == ModeReadWrite
}

func (m AccessMode) valid() bool {
	switch m {
	case ModeRead, ModeWrite, ModeReadWrite:
		return true
	default:
		return false
	}
}
