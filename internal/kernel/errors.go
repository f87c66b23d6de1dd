// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kernel

import "errors"

var (
	// ErrNoKernels is returned when discovery found no candidate at all.
	ErrNoKernels = errors.New("no kernel image found")

	// ErrNoMatch is returned when candidates exist but none matches the
	// requested string.
	ErrNoMatch = errors.New("no kernel image matches")
)

// NotFoundError reports a failed kernel resolution. It carries the ranked
// candidate listing so callers can print it for diagnosis.
type NotFoundError struct {
	Match      string
	Candidates []Candidate
}

// Error implements the [error] interface.
func (e *NotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return ErrNoKernels.Error()
	}

	return ErrNoMatch.Error() + ": " + e.Match
}

// Is implements the [errors.Is] interface. A resolution with an empty
// candidate list is [ErrNoKernels], anything else is [ErrNoMatch].
func (e *NotFoundError) Is(other error) bool {
	if len(e.Candidates) == 0 {
		return other == ErrNoKernels
	}

	return other == ErrNoMatch
}
