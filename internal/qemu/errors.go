// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"errors"
	"fmt"
)

var (
	// ErrArgumentCollision is returned if two [Argument]s are considered
	// equal.
	ErrArgumentCollision = errors.New("colliding args")

	// ErrNotStarted is returned if the QEMU process could not be started at
	// all.
	ErrNotStarted = errors.New("process did not start")
)

// CommandError wraps a QEMU process that terminated with a non-zero exit
// code.
type CommandError struct {
	Err      error
	ExitCode int
	// Signal is set if the exit code is in the conventional killed-by-signal
	// range, meaning the QEMU process itself died, not the guest.
	Signal bool
}

// Error implements the [error] interface.
func (e *CommandError) Error() string {
	if e.Signal {
		return fmt.Sprintf(
			"qemu crashed with signal %d: %v",
			e.ExitCode-exitCodeSignalOffset,
			e.Err,
		)
	}

	return fmt.Sprintf("qemu exited with code %d: %v", e.ExitCode, e.Err)
}

// Is implements the [errors.Is] interface.
func (*CommandError) Is(other error) bool {
	_, ok := other.(*CommandError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *CommandError) Unwrap() error {
	return e.Err
}
