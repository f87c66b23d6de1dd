// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package platform

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/vmexec/vmexec/internal/qemu"
)

// FirmwareKind selects how guest firmware is chosen.
type FirmwareKind int

const (
	// FirmwareDefault uses the host-conventional firmware image if present,
	// QEMU's built-in default otherwise.
	FirmwareDefault FirmwareKind = iota
	// FirmwareUEFI requires the per-architecture UEFI image.
	FirmwareUEFI
	// FirmwareSecureBoot requires the per-architecture secure boot pflash
	// images.
	FirmwareSecureBoot
	// FirmwareMicroVM switches to the minimal microvm machine type with the
	// qboot blob.
	FirmwareMicroVM
	// FirmwareNamed uses a named image resolved in the firmware directories,
	// or a path given directly.
	FirmwareNamed
)

// Firmware is the caller's firmware selection.
type Firmware struct {
	Kind FirmwareKind
	// Name is the image name or path for [FirmwareNamed].
	Name string
}

// FirmwareResolution is the outcome of firmware selection.
type FirmwareResolution struct {
	Args []qemu.Argument
	// Machine overrides the profile's machine type if non-empty.
	Machine string
}

const microVMFirmware = "/usr/share/qemu/qboot.rom"

// ResolveFirmware resolves the selection against the profile's known
// firmware assets. Explicitly requested firmware that is not present on the
// host is a fatal configuration error, never a silent skip. fsys is the
// host root.
func ResolveFirmware(
	firmware Firmware,
	profile *Profile,
	fsys fs.FS,
) (FirmwareResolution, error) {
	var resolution FirmwareResolution

	switch firmware.Kind {
	case FirmwareDefault:
		if path, ok := firstExisting(fsys, profile.FirmwarePaths); ok {
			resolution.Args = biosArgs(path)
		}
	case FirmwareUEFI:
		path, ok := firstExisting(fsys, profile.FirmwarePaths)
		if !ok {
			return resolution, fmt.Errorf(
				"%w: no UEFI image for %s", ErrFirmwareNotFound, profile.Arch,
			)
		}

		resolution.Args = biosArgs(path)
	case FirmwareSecureBoot:
		if !exists(fsys, profile.SecureBootCode) ||
			!exists(fsys, profile.SecureBootVars) {
			return resolution, fmt.Errorf(
				"%w: no secure boot images for %s",
				ErrFirmwareNotFound, profile.Arch,
			)
		}

		resolution.Args = []qemu.Argument{
			qemu.RepeatableArg("drive",
				"if=pflash", "format=raw", "readonly=on",
				"file="+profile.SecureBootCode,
			),
			qemu.RepeatableArg("drive",
				"if=pflash", "format=raw",
				"file="+profile.SecureBootVars,
			),
		}
	case FirmwareMicroVM:
		resolution.Machine = "microvm,acpi=off"

		if exists(fsys, microVMFirmware) {
			resolution.Args = biosArgs(microVMFirmware)
		}
	case FirmwareNamed:
		path, err := resolveNamed(firmware.Name, profile, fsys)
		if err != nil {
			return resolution, err
		}

		resolution.Args = biosArgs(path)
	}

	return resolution, nil
}

func resolveNamed(
	name string,
	profile *Profile,
	fsys fs.FS,
) (string, error) {
	if strings.ContainsRune(name, '/') {
		if !exists(fsys, name) {
			return "", fmt.Errorf("%w: %s", ErrFirmwareNotFound, name)
		}

		return name, nil
	}

	for _, dir := range profile.FirmwareDirs {
		path := filepath.Join(dir, name)
		if exists(fsys, path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrFirmwareNotFound, name)
}

func biosArgs(path string) []qemu.Argument {
	return []qemu.Argument{qemu.UniqueArg("bios", path)}
}

func firstExisting(fsys fs.FS, paths []string) (string, bool) {
	for _, path := range paths {
		if exists(fsys, path) {
			return path, true
		}
	}

	return "", false
}

func exists(fsys fs.FS, path string) bool {
	if path == "" {
		return false
	}

	// fs.FS considers a leading / invalid.
	_, err := fs.Stat(fsys, strings.TrimPrefix(path, "/"))

	return err == nil
}
