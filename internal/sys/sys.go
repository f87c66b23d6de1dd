// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sys provides probes for host properties the run configuration
// depends on: the machine personality, KVM device access and file system
// backing of directories shared with the guest.
package sys

import (
	"bytes"
	"fmt"

	"golang.org/x/sys/unix"
)

// UnameMachine returns the machine field of uname(2).
//
// The value reflects the calling process's personality. A 32-bit process on
// an aarch64 kernel sees "armv8l", not "aarch64".
func UnameMachine() (string, error) {
	var uts unix.Utsname

	err := unix.Uname(&uts)
	if err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}

	machine := uts.Machine[:]
	if idx := bytes.IndexByte(machine, 0); idx >= 0 {
		machine = machine[:idx]
	}

	return string(machine), nil
}

// KVMAvailable checks that the KVM device node exists and is writable for
// the calling process.
func KVMAvailable() bool {
	return unix.Access("/dev/kvm", unix.W_OK) == nil
}

// MemoryBacked reports whether the file system containing path is a
// memory-backed file system (tmpfs or ramfs). Paths on such file systems are
// not visible through the host root export and must not be handed to the
// guest.
func MemoryBacked(path string) (bool, error) {
	var stat unix.Statfs_t

	err := unix.Statfs(path, &stat)
	if err != nil {
		return false, fmt.Errorf("statfs %s: %w", path, err)
	}

	switch uint32(stat.Type) {
	case unix.TMPFS_MAGIC, unix.RAMFS_MAGIC:
		return true, nil
	default:
		return false, nil
	}
}
