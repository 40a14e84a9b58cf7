// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package grubinstall

import (
	"context"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/device"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/mountinfo"
)

// Options configure a Target beyond its constructor arguments. The zero
// value of each field selects the production implementation; overrides exist
// so tests can run against in-memory disks and synthetic mount tables.
type Options struct {
	// Printf logs installer progress.
	Printf func(string, ...any)

	// MountProbe resolves the filesystem backing a directory.
	MountProbe func(ctx context.Context, dir string) (*mountinfo.Mount, error)

	// OpenDisk opens the named device, exclusively locked when write is set.
	OpenDisk func(ctx context.Context, path string, write bool) (device.Disk, error)

	// ProbeDisk classifies an open disk.
	ProbeDisk func(disk device.Disk) (*device.Info, error)

	// IsWholeDisk tells whole disks from partitions.
	IsWholeDisk func(path string) (bool, error)
}

// Option customizes a Target.
type Option func(*Options)

// WithPrintf routes progress output through printf.
func WithPrintf(printf func(string, ...any)) Option {
	return func(o *Options) {
		o.Printf = printf
	}
}

// WithMountProbe overrides how the boot directory's filesystem is resolved.
func WithMountProbe(probe func(ctx context.Context, dir string) (*mountinfo.Mount, error)) Option {
	return func(o *Options) {
		o.MountProbe = probe
	}
}

// WithDiskOpener overrides how the backing device is opened.
func WithDiskOpener(open func(ctx context.Context, path string, write bool) (device.Disk, error)) Option {
	return func(o *Options) {
		o.OpenDisk = open
	}
}

// WithDiskProber overrides how an open disk is classified.
func WithDiskProber(probe func(disk device.Disk) (*device.Info, error)) Option {
	return func(o *Options) {
		o.ProbeDisk = probe
	}
}

// WithWholeDiskCheck overrides how device paths are classified as whole
// disks or partitions.
func WithWholeDiskCheck(check func(path string) (bool, error)) Option {
	return func(o *Options) {
		o.IsWholeDisk = check
	}
}

func defaultOptions() Options {
	return Options{
		Printf: func(string, ...any) {},

		MountProbe: mountinfo.Resolve,

		OpenDisk: func(ctx context.Context, path string, write bool) (device.Disk, error) {
			if write {
				return device.Open(ctx, path)
			}

			return device.OpenReadonly(ctx, path)
		},

		ProbeDisk: func(disk device.Disk) (*device.Info, error) {
			if bd, ok := disk.(*device.BlockDisk); ok {
				return bd.Probe()
			}

			return device.Probe(disk)
		},

		IsWholeDisk: device.IsWholeDisk,
	}
}
