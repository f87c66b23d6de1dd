// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package platform

import (
	"runtime"

	"github.com/pbnjay/memory"
)

// Caps is the resource allocation for the guest. A zero field means the
// corresponding argument is omitted and QEMU's built-in default applies.
type Caps struct {
	MemMB uint64
	CPUs  uint64
}

const (
	// Guests below this memory size fail to boot more often than they help.
	minUsableMemMB = 256

	mbFactor = 1024 * 1024
)

// HostMemoryMB returns the host's free memory in MB. Overridable for tests.
var HostMemoryMB = func() uint64 {
	return memory.FreeMemory() / mbFactor
}

// HostCPUs returns the host's logical CPU count. Overridable for tests.
var HostCPUs = func() uint64 {
	return uint64(runtime.NumCPU())
}

// CalculateCaps computes the guest memory and CPU allocation from host
// availability, caller overrides and the profile's architecture ceilings.
//
// Memory below the minimum usable threshold is omitted entirely rather than
// passed as a too-small value. A CPU count of one or less is omitted since
// single-CPU is the implicit default. Ceilings always hold, including for
// caller overrides.
func CalculateCaps(profile *Profile, memOverrideMB, cpuOverride uint64) Caps {
	var caps Caps

	memMB := memOverrideMB
	if memMB == 0 {
		memMB = HostMemoryMB()
	}

	if profile.MaxMemMB != 0 {
		memMB = min(memMB, profile.MaxMemMB)
	}

	if memMB >= minUsableMemMB {
		caps.MemMB = memMB
	}

	cpus := cpuOverride
	if cpus == 0 {
		cpus = HostCPUs()
	}

	if profile.MaxCPUs != 0 {
		cpus = min(cpus, profile.MaxCPUs)
	}

	if cpus > 1 {
		caps.CPUs = cpus
	}

	return caps
}
