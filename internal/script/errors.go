// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package script

import "errors"

var (
	// ErrEmptyCommand is returned when a script is generated without a
	// command. The interactive-shell default is the caller's concern.
	ErrEmptyCommand = errors.New("empty command")

	// ErrResultMissing is returned when the result file does not exist
	// after the guest exited.
	ErrResultMissing = errors.New("result file missing")

	// ErrResultEmpty is returned when the result file exists but holds no
	// exit code.
	ErrResultEmpty = errors.New("result file empty")

	// ErrResultInvalid is returned when the result file content is not an
	// exit code.
	ErrResultInvalid = errors.New("result file invalid")
)
