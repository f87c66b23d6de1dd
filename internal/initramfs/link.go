// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureTreeModulesLink makes a kernel source tree usable as a module root
// for depmod and modprobe by linking <tree>/lib/modules/<release> back to
// the tree itself, where the built module files live. An existing entry is
// left alone.
func EnsureTreeModulesLink(tree, release string) error {
	moduleDir := filepath.Join(tree, "lib", "modules")

	err := os.MkdirAll(moduleDir, 0o755)
	if err != nil {
		return fmt.Errorf("create %s: %w", moduleDir, err)
	}

	link := filepath.Join(moduleDir, release)

	_, err = os.Lstat(link)
	if err == nil {
		return nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", link, err)
	}

	// Relative so the tree can move.
	err = os.Symlink("../..", link)
	if err != nil {
		return fmt.Errorf("link %s: %w", link, err)
	}

	return nil
}
