// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package platform

import (
	"os/exec"

	"github.com/vmexec/vmexec/internal/sys"
)

// Compat32Probe checks that the host can run 32-bit ARM guests with
// hardware acceleration. It is consulted when the process runs in a 32-bit
// personality on an aarch64 kernel.
//
// The default implementation delegates to the arch-test helper, treating any
// failure, including a missing helper, as unsupported.
var Compat32Probe = func() bool {
	return exec.Command("arch-test", "-n", "armv7l").Run() == nil
}

// HostArch maps the host machine identifier to an architecture identifier
// known to [Resolve].
//
// The machine string reflects the calling process's personality: on an
// aarch64 kernel a 32-bit process sees "armv8l". Such a host is classified
// as "aarch32" when the compatibility probe confirms accelerated 32-bit
// support, and as plain "armh" otherwise. Unknown machine strings are
// returned unchanged and rejected by [Resolve].
func HostArch() (string, error) {
	machine, err := sys.UnameMachine()
	if err != nil {
		return "", err
	}

	return classifyMachine(machine, Compat32Probe), nil
}

func classifyMachine(machine string, compat32 func() bool) string {
	switch machine {
	case "x86_64":
		return X86_64
	case "i386", "i486", "i586", "i686":
		return I586
	case "ppc64le":
		return PPC64LE
	case "aarch64":
		return AArch64
	case "armv8l":
		if compat32() {
			return AArch32
		}

		return ARMH
	case "armv6l", "armv7l":
		return ARMH
	default:
		return machine
	}
}
