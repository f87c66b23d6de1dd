// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import "errors"

// ErrHelp is returned when the user requested the usage message. It is not
// a failure but still terminates the run.
var ErrHelp = errors.New("help requested")

// ParseArgsError wraps errors that occur during argument parsing.
type ParseArgsError struct {
	msg string
	err error
}

// Error implements the [error] interface.
func (e *ParseArgsError) Error() string {
	if e.err == nil {
		return e.msg
	}

	return e.msg + ": " + e.err.Error()
}

// Is implements the [errors.Is] interface.
func (e *ParseArgsError) Is(other error) bool {
	_, ok := other.(*ParseArgsError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *ParseArgsError) Unwrap() error {
	return e.err
}
