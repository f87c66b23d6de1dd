// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package platform resolves the host architecture into the QEMU
// configuration used for a run: binary name, console device, machine
// options, firmware assets, virtio bus flavor and resource ceilings.
package platform

import (
	"fmt"

	"github.com/vmexec/vmexec/internal/qemu"
)

// Bus is the virtio bus flavor the machine type provides. It selects both
// the QEMU device name suffix and the kernel transport module.
type Bus string

const (
	// BusPCI attaches virtio devices via PCI ("virtio-9p-pci").
	BusPCI Bus = "pci"
	// BusDevice attaches virtio devices via MMIO ("virtio-9p-device").
	BusDevice Bus = "device"
)

// DeviceName returns the QEMU device name for the given virtio device type.
func (b Bus) DeviceName(virtioType string) string {
	return "virtio-" + virtioType + "-" + string(b)
}

// TransportModule returns the kernel module providing the bus.
func (b Bus) TransportModule() string {
	if b == BusDevice {
		return "virtio_mmio"
	}

	return "virtio_pci"
}

// Profile is the fixed per-architecture configuration. It is resolved once
// per run and not modified afterwards.
type Profile struct {
	// Arch is the architecture identifier the profile was resolved for.
	Arch string

	// QemuBin is the name of the qemu-system binary.
	QemuBin string

	// Console is the serial console device name the guest kernel uses.
	Console string

	// Machine is the QEMU machine type. Empty means QEMU's default.
	Machine string

	// MachineOpts are extra arguments always passed for this architecture.
	MachineOpts []qemu.Argument

	// KernelArgs are extra kernel cmdline tokens for this architecture.
	KernelArgs []string

	// FirmwarePaths are candidate firmware images, first existing one wins.
	FirmwarePaths []string

	// FirmwareDirs are directories a firmware image name is resolved in.
	FirmwareDirs []string

	// SecureBootCode and SecureBootVars are the pflash images required for
	// secure boot. Both empty means secure boot is not available.
	SecureBootCode string
	SecureBootVars string

	// MaxMemMB caps the guest memory. Zero means no cap.
	MaxMemMB uint64

	// MaxCPUs caps the guest CPU count. Zero means no cap.
	MaxCPUs uint64

	// VirtioBus is the virtio bus flavor of the machine type.
	VirtioBus Bus
}

// Supported architecture identifiers.
const (
	PPC64LE = "powerpc64le"
	AArch64 = "aarch64"
	AArch32 = "aarch32"
	ARMH    = "armh"
	I586    = "i586"
	X86_64  = "x86_64"
)

const mem32BitCapMB = 2047

var profiles = map[string]Profile{
	X86_64: {
		Arch:    X86_64,
		QemuBin: "qemu-system-x86_64",
		Console: "ttyS0",
		FirmwarePaths: []string{
			"/usr/share/qemu/ovmf-x86_64-code.bin",
			"/usr/share/OVMF/OVMF_CODE.fd",
			"/usr/share/edk2/ovmf/OVMF_CODE.fd",
		},
		FirmwareDirs: []string{
			"/usr/share/qemu",
			"/usr/share/OVMF",
			"/usr/share/edk2/ovmf",
		},
		SecureBootCode: "/usr/share/OVMF/OVMF_CODE.secboot.fd",
		SecureBootVars: "/usr/share/OVMF/OVMF_VARS.secboot.fd",
		VirtioBus:      BusPCI,
	},
	I586: {
		Arch:    I586,
		QemuBin: "qemu-system-i386",
		Console: "ttyS0",
		FirmwareDirs: []string{
			"/usr/share/qemu",
		},
		MaxMemMB:  mem32BitCapMB,
		VirtioBus: BusPCI,
	},
	AArch64: {
		Arch:    AArch64,
		QemuBin: "qemu-system-aarch64",
		Console: "ttyAMA0",
		Machine: "virt",
		MachineOpts: []qemu.Argument{
			qemu.UniqueArg("cpu", "max"),
		},
		FirmwarePaths: []string{
			"/usr/share/qemu/aavmf-aarch64-code.bin",
			"/usr/share/AAVMF/AAVMF_CODE.fd",
			"/usr/share/edk2/aarch64/QEMU_EFI-pflash.raw",
		},
		FirmwareDirs: []string{
			"/usr/share/qemu",
			"/usr/share/AAVMF",
		},
		VirtioBus: BusPCI,
	},
	AArch32: {
		Arch:    AArch32,
		QemuBin: "qemu-system-arm",
		Console: "ttyAMA0",
		Machine: "virt",
		FirmwareDirs: []string{
			"/usr/share/qemu",
		},
		MaxMemMB:  mem32BitCapMB,
		MaxCPUs:   4,
		VirtioBus: BusDevice,
	},
	ARMH: {
		Arch:    ARMH,
		QemuBin: "qemu-system-arm",
		Console: "ttyAMA0",
		Machine: "virt",
		FirmwareDirs: []string{
			"/usr/share/qemu",
		},
		MaxMemMB:  mem32BitCapMB,
		MaxCPUs:   4,
		VirtioBus: BusDevice,
	},
	PPC64LE: {
		Arch:    PPC64LE,
		QemuBin: "qemu-system-ppc64",
		Console: "hvc0",
		// HTM is not virtualizable on all POWER hosts and the guest does
		// not need it. Power management in the guest just burns cycles.
		Machine: "pseries,cap-htm=off",
		KernelArgs: []string{
			"powersave=off",
		},
		FirmwareDirs: []string{
			"/usr/share/qemu",
		},
		VirtioBus: BusPCI,
	},
}

// Resolve returns the [Profile] for the given architecture identifier.
// Unknown identifiers are a fatal configuration error, there is no fallback.
func Resolve(arch string) (*Profile, error) {
	profile, exists := profiles[arch]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrArchNotSupported, arch)
	}

	return &profile, nil
}
