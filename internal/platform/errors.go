// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package platform

import "errors"

var (
	// ErrArchNotSupported is returned for architecture identifiers that have
	// no profile.
	ErrArchNotSupported = errors.New("architecture not supported")

	// ErrAccelModeUnknown is returned for acceleration mode strings that are
	// not recognized.
	ErrAccelModeUnknown = errors.New("unknown acceleration mode")

	// ErrAccelSkip is returned when acceleration is required by policy but
	// the host cannot provide it. It is not a failure; callers map it to a
	// successful exit.
	ErrAccelSkip = errors.New("hardware acceleration not available, skipping")

	// ErrFirmwareNotFound is returned when explicitly requested firmware
	// assets are not present on the host.
	ErrFirmwareNotFound = errors.New("requested firmware not found")
)
