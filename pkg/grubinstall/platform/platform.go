// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package platform describes the firmware/architecture combinations a GRUB payload
// can be built for, and the per-platform installation state.
package platform

import (
	"fmt"

	"github.com/siderolabs/gen/xslices"
)

// Type is a firmware/architecture combination, named after its canonical
// directory under the boot directory's grub tree.
type Type string

// Known platform types.
const (
	TypeI386PC         Type = "i386-pc"
	TypeI386EFI        Type = "i386-efi"
	TypeX8664EFI       Type = "x86_64-efi"
	TypeArm64EFI       Type = "arm64-efi"
	TypeI386Multiboot  Type = "i386-multiboot"
	TypeI386Coreboot   Type = "i386-coreboot"
	TypeI386QEMU       Type = "i386-qemu"
	TypeMipselLoongson Type = "mipsel-loongson"
)

// All returns every known platform type in canonical order.
func All() []Type {
	return []Type{
		TypeI386PC,
		TypeI386EFI,
		TypeX8664EFI,
		TypeArm64EFI,
		TypeI386Multiboot,
		TypeI386Coreboot,
		TypeI386QEMU,
		TypeMipselLoongson,
	}
}

// Parse maps a platform directory name to its Type.
func Parse(name string) (Type, error) {
	for _, t := range All() {
		if string(t) == name {
			return t, nil
		}
	}

	return "", fmt.Errorf("unknown platform %q (known: %v)", name, xslices.Map(All(), func(t Type) string { return string(t) }))
}

// Family groups platform types by their boot mechanism.
type Family int

// Platform families.
const (
	FamilyBIOS Family = iota
	FamilyEFI
	FamilyOther
)

// String implements fmt.Stringer.
func (f Family) String() string {
	switch f {
	case FamilyBIOS:
		return "bios"
	case FamilyEFI:
		return "efi"
	case FamilyOther:
		return "other"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// Family returns the boot mechanism family of the platform.
func (t Type) Family() Family {
	switch t {
	case TypeI386PC:
		return FamilyBIOS
	case TypeI386EFI, TypeX8664EFI, TypeArm64EFI:
		return FamilyEFI
	case TypeI386Multiboot, TypeI386Coreboot, TypeI386QEMU, TypeMipselLoongson:
		return FamilyOther
	default:
		return FamilyOther
	}
}

// Installable reports whether installing the platform is implemented.
//
// The enumeration deliberately carries more platforms than the installer can
// handle; anything outside the installable subset fails with an unsupported
// error instead of guessing.
func (t Type) Installable() bool {
	switch t {
	case TypeI386PC, TypeI386EFI, TypeX8664EFI:
		return true
	default:
		return false
	}
}

// UsesNativeDiskModules reports whether the platform accesses disks through
// GRUB's native drivers instead of firmware services.
func (t Type) UsesNativeDiskModules() bool {
	switch t {
	case TypeI386Multiboot, TypeI386Coreboot, TypeI386QEMU, TypeMipselLoongson:
		return true
	default:
		return false
	}
}

// DiskModules returns the disk-access modules the platform's core image needs.
//
// The native set is ordered: IDE first, then SCSI/AHCI, then the USB
// controller chain. The core image probes in list order, so the order is part
// of the contract.
func (t Type) DiskModules() []string {
	switch {
	case t == TypeI386PC:
		return []string{"biosdisk"}
	case t.UsesNativeDiskModules():
		return []string{"pata", "ahci", "ohci", "uhci", "ehci", "ubms"}
	default:
		return nil
	}
}

// CoreImageName returns the platform's core image file name.
func (t Type) CoreImageName() string {
	if t.UsesNativeDiskModules() {
		return "core.elf"
	}

	return "core.img"
}

// MkimageTarget returns the image builder target name for the platform.
func (t Type) MkimageTarget() string {
	return string(t)
}

// EFIBootFileName returns the removable-media loader name for EFI platforms
// (the EFI/BOOT fallback path mandated by the UEFI specification).
func (t Type) EFIBootFileName() (string, error) {
	switch t {
	case TypeI386EFI:
		return "BOOTIA32.EFI", nil
	case TypeX8664EFI:
		return "BOOTX64.EFI", nil
	case TypeArm64EFI:
		return "BOOTAA64.EFI", nil
	default:
		return "", fmt.Errorf("platform %q has no EFI boot file", t)
	}
}
