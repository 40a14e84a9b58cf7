// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package platform

import "fmt"

// Status classifies a platform installation on a target.
type Status int

// Install statuses.
//
// StatusNotExist is synthetic: it is reported for platforms with no on-disk
// evidence and is never stored. StatusExist means files are present but failed
// integrity verification. StatusBootable means verification passed at the time
// of the check.
const (
	StatusNotExist Status = iota
	StatusExist
	StatusBootable
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusNotExist:
		return "NOT_EXIST"
	case StatusExist:
		return "EXIST"
	case StatusBootable:
		return "BOOTABLE"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// InstallInfo is the verification result for one platform on one target.
//
// Records are created fresh on every discovery/verification pass and replaced
// wholesale on install; they are never mutated in place.
type InstallInfo struct {
	Status Status

	// BIOS platforms only.
	MBRInstalled bool
	AllowFloppy  bool
	RSCodes      bool

	// EFI platforms only.
	Removable bool
	NVRAM     bool
}

// NotInstalled returns the synthetic record for an absent platform.
func NotInstalled() InstallInfo {
	return InstallInfo{Status: StatusNotExist}
}
