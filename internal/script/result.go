// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package script

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const maxExitCode = 255

// ReadResult polls the result file exactly once after the guest exited.
//
// The three outcomes are distinct: a missing file ([ErrResultMissing]), a
// present but empty file ([ErrResultEmpty]) and a recorded exit code. Both
// error cases mean the guest never reached the point of writing the result,
// typically a guest kernel crash or a manual monitor quit.
func ReadResult(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrResultMissing, path)
		}

		return 0, fmt.Errorf("read result: %w", err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return 0, fmt.Errorf("%w: %s", ErrResultEmpty, path)
	}

	code, err := strconv.Atoi(trimmed)
	if err != nil || code < 0 || code > maxExitCode {
		return 0, fmt.Errorf("%w: %q", ErrResultInvalid, trimmed)
	}

	return code, nil
}
