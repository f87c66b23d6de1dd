// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session composes the final QEMU invocation from the resolved
// platform profile, boot payload and command channel, runs it and recovers
// the remote command's exit status.
package session

import (
	"strconv"
	"strings"

	"github.com/vmexec/vmexec/internal/platform"
	"github.com/vmexec/vmexec/internal/qemu"
	"github.com/vmexec/vmexec/internal/script"
)

// Spec is the complete per-run configuration for the guest session.
type Spec struct {
	Profile  *platform.Profile
	Firmware platform.FirmwareResolution
	Accel    []qemu.Argument
	Caps     platform.Caps

	Kernel    string
	Initramfs string
	Channel   *script.Channel

	// Machine overrides the machine type. Firmware and profile defaults
	// apply in that order when empty.
	Machine string

	// Sandbox is the QEMU syscall sandbox spec. Empty disables the flag.
	Sandbox string

	// Append are extra kernel cmdline tokens.
	Append []string

	// ExtraArgs are pass-through emulator arguments. They must not collide
	// with the essential arguments.
	ExtraArgs []qemu.Argument

	// NoQuiet keeps the guest kernel's boot messages.
	NoQuiet bool

	// Guest environment contract.
	Verbose bool
	Udevd   bool
	Overlay string
	NoTTY   bool
}

// BuildCommand composes the emulator invocation. All tokens are discrete
// arguments; nothing is spliced through a shell.
func BuildCommand(spec *Spec) (*qemu.Command, error) {
	bus := spec.Profile.VirtioBus

	args := []qemu.Argument{
		// No host-configured defaults, no video, and the guest must not
		// reboot: a kernel panic terminates the emulator instead.
		qemu.UniqueArg("nodefaults"),
		qemu.UniqueArg("no-user-config"),
		qemu.UniqueArg("no-reboot"),
		qemu.UniqueArg("display", "none"),
	}

	if spec.Sandbox != "" {
		args = append(args, qemu.UniqueArg("sandbox", spec.Sandbox))
	}

	if machine := machineType(spec); machine != "" {
		args = append(args, qemu.UniqueArg("machine", machine))
	}

	args = append(args, spec.Profile.MachineOpts...)
	args = append(args, spec.Accel...)
	args = append(args, spec.Firmware.Args...)

	if spec.Caps.MemMB != 0 {
		args = append(args, qemu.UniqueArg(
			"m", strconv.FormatUint(spec.Caps.MemMB, 10),
		))
	}

	if spec.Caps.CPUs != 0 {
		args = append(args, qemu.UniqueArg(
			"smp", strconv.FormatUint(spec.Caps.CPUs, 10),
		))
	}

	args = append(args,
		// Host root shared read/write. Device/inode remapping keeps files
		// distinguishable when the host root spans multiple devices.
		qemu.RepeatableArg("fsdev",
			"local", "id=root", "path=/",
			"security_model=none", "multidevs=remap",
		),
		qemu.RepeatableArg("device",
			bus.DeviceName("9p"), "fsdev=root", "mount_tag=/dev/root",
		),
		qemu.RepeatableArg("object",
			"rng-random", "filename=/dev/urandom", "id=rng0",
		),
		qemu.RepeatableArg("device", bus.DeviceName("rng"), "rng=rng0"),
		qemu.RepeatableArg("netdev", "user", "id=net0"),
		qemu.RepeatableArg("device", bus.DeviceName("net"), "netdev=net0"),
		// Multiplexed with the monitor so keyboard interrupts still have a
		// control plane when the guest wedges.
		qemu.RepeatableArg("serial", "mon:stdio"),
		qemu.UniqueArg("kernel", spec.Kernel),
		qemu.UniqueArg("initrd", spec.Initramfs),
	)

	args = append(args, spec.ExtraArgs...)

	args = append(args, qemu.RepeatableArg(
		"append", strings.Join(kernelCmdline(spec), " "),
	))

	return qemu.NewCommand(spec.Profile.QemuBin, args)
}

func machineType(spec *Spec) string {
	if spec.Machine != "" {
		return spec.Machine
	}

	if spec.Firmware.Machine != "" {
		return spec.Firmware.Machine
	}

	return spec.Profile.Machine
}

// kernelCmdline builds the guest kernel command line including the
// environment contract tokens the guest init reads.
func kernelCmdline(spec *Spec) []string {
	cmdline := []string{
		"console=" + spec.Profile.Console,
		"root=/dev/root",
		"rootfstype=9p",
		"rootflags=trans=virtio",
		"rw",
		"panic=-1",
		"mitigations=off",
	}

	if !spec.NoQuiet {
		cmdline = append(cmdline, "quiet")
	}

	cmdline = append(cmdline, spec.Profile.KernelArgs...)

	cmdline = append(cmdline,
		"SCRIPT="+spec.Channel.ScriptPath,
		"RESULT="+spec.Channel.ResultPath,
	)

	if spec.Verbose {
		cmdline = append(cmdline, "VERBOSE=1")
	}

	if spec.Udevd {
		cmdline = append(cmdline, "UDEVD=1")
	}

	if spec.Overlay != "" {
		cmdline = append(cmdline, "OVERLAY="+spec.Overlay)
	}

	if spec.NoTTY {
		cmdline = append(cmdline, "NOTTY=1")
	}

	cmdline = append(cmdline, spec.Append...)

	return cmdline
}
