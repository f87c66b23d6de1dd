// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import (
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Exec replaces the current process with the given command. The first
// element of argv is looked up in PATH. It only returns on error.
func Exec(argv, env []string) error {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("look up %s: %w", argv[0], err)
	}

	err = unix.Exec(path, argv, env)

	return fmt.Errorf("exec %s: %w", path, err)
}
