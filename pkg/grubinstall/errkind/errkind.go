// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package errkind classifies installer failures so that callers can tell
// precondition violations, bad devices and unsupported requests apart without
// string matching.
//
// Errors are tagged with github.com/siderolabs/gen/xerrors; use the Is*
// predicates (or xerrors.TagIs directly) to classify a wrapped error chain.
package errkind

import "github.com/siderolabs/gen/xerrors"

// InvalidMode is an error tag: operation attempted outside its required access mode.
type InvalidMode struct{}

// InvalidDevice is an error tag: the block device fails install preconditions.
type InvalidDevice struct{}

// MountProbe is an error tag: the boot directory is not on a resolvable filesystem.
type MountProbe struct{}

// SizeViolation is an error tag: a boot payload is outside its allowed size range.
type SizeViolation struct{}

// FilesystemMismatch is an error tag: the mount filesystem cannot host the platform.
type FilesystemMismatch struct{}

// Unsupported is an error tag: the request is recognized but deliberately unimplemented.
type Unsupported struct{}

// IsInvalidMode reports whether err is tagged InvalidMode.
func IsInvalidMode(err error) bool { return xerrors.TagIs[InvalidMode](err) }

// IsInvalidDevice reports whether err is tagged InvalidDevice.
func IsInvalidDevice(err error) bool { return xerrors.TagIs[InvalidDevice](err) }

// IsMountProbe reports whether err is tagged MountProbe.
func IsMountProbe(err error) bool { return xerrors.TagIs[MountProbe](err) }

// IsSizeViolation reports whether err is tagged SizeViolation.
func IsSizeViolation(err error) bool { return xerrors.TagIs[SizeViolation](err) }

// IsFilesystemMismatch reports whether err is tagged FilesystemMismatch.
func IsFilesystemMismatch(err error) bool { return xerrors.TagIs[FilesystemMismatch](err) }

// IsUnsupported reports whether err is tagged Unsupported.
func IsUnsupported(err error) bool { return xerrors.TagIs[Unsupported](err) }
