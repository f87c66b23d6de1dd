// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import "errors"

var (
	// ErrReleaseUnknown is returned when the kernel release identifier can
	// be determined neither from the build system nor the image name.
	ErrReleaseUnknown = errors.New("kernel release unknown")

	// ErrDepmod is returned when module dependency metadata is unusable and
	// cannot be regenerated.
	ErrDepmod = errors.New("module metadata")

	// ErrModprobe is returned when module resolution fails.
	ErrModprobe = errors.New("module resolution")

	// ErrModuleFormat is returned for module files in an unknown
	// compression format.
	ErrModuleFormat = errors.New("unknown module file format")

	// ErrInitMissing is returned when the guest init executable is not
	// present.
	ErrInitMissing = errors.New("guest init executable missing")

	// ErrFileTypeUnsupported is returned for staging entries that cannot be
	// archived.
	ErrFileTypeUnsupported = errors.New("unsupported file type")
)
