// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package platform

import (
	"fmt"

	"github.com/vmexec/vmexec/internal/qemu"
	"github.com/vmexec/vmexec/internal/sys"
)

// AccelMode governs whether hardware acceleration is probed for and how a
// failed probe is handled.
type AccelMode int

const (
	// AccelOff forces software emulation explicitly.
	AccelOff AccelMode = iota
	// AccelDefault passes no acceleration argument at all.
	AccelDefault
	// AccelTry probes and falls back to software emulation silently.
	AccelTry
	// AccelConditional probes and skips the whole run gracefully (exit 0)
	// if the host cannot accelerate.
	AccelConditional
	// AccelForced requests acceleration without probing. An incapable host
	// surfaces as a QEMU startup failure.
	AccelForced
	// AccelAny requests acceleration with built-in fallback, unprobed.
	AccelAny
)

// ParseAccelMode maps a user-supplied mode string to an [AccelMode].
// Unrecognized strings are a fatal configuration error.
func ParseAccelMode(s string) (AccelMode, error) {
	switch s {
	case "", "no", "off", "false", "tcg":
		return AccelOff, nil
	case "default":
		return AccelDefault, nil
	case "try", "detect":
		return AccelTry, nil
	case "if", "conditional":
		return AccelConditional, nil
	case "only", "force", "enable":
		return AccelForced, nil
	case "any", "all":
		return AccelAny, nil
	default:
		return AccelOff, fmt.Errorf("%w: %q", ErrAccelModeUnknown, s)
	}
}

// KVMProbe reports whether the profile's architecture can be accelerated on
// this host. Overridable for tests.
var KVMProbe = func(profile *Profile) bool {
	if !sys.KVMAvailable() {
		return false
	}

	// 32-bit guest CPUs on an aarch64 host additionally need the
	// compatibility helper's approval.
	if profile.Arch == AArch32 {
		return Compat32Probe()
	}

	return true
}

// ResolveAccel turns the mode into the acceleration arguments for the run.
//
// It returns [ErrAccelSkip] if the mode requires acceleration but allows
// skipping the run, and the host cannot accelerate.
func ResolveAccel(
	mode AccelMode,
	profile *Profile,
) ([]qemu.Argument, error) {
	switch mode {
	case AccelOff:
		return []qemu.Argument{qemu.RepeatableArg("accel", "tcg")}, nil
	case AccelDefault:
		return nil, nil
	case AccelTry:
		if !KVMProbe(profile) {
			return nil, nil
		}

		return kvmArgs(profile), nil
	case AccelConditional:
		if !KVMProbe(profile) {
			return nil, ErrAccelSkip
		}

		return kvmArgs(profile), nil
	case AccelForced:
		return kvmArgs(profile), nil
	case AccelAny:
		args := []qemu.Argument{
			qemu.RepeatableArg("accel", "kvm"),
			qemu.RepeatableArg("accel", "tcg"),
		}

		return args, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrAccelModeUnknown, mode)
	}
}

func kvmArgs(profile *Profile) []qemu.Argument {
	args := []qemu.Argument{qemu.UniqueArg("enable-kvm")}

	// KVM runs the 32-bit guest on the 64-bit host CPU.
	if profile.Arch == AArch32 {
		args = append(args, qemu.UniqueArg("cpu", "host,aarch64=off"))
	}

	return args
}
