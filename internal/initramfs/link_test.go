// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmexec/vmexec/internal/initramfs"
)

func TestEnsureTreeModulesLink(t *testing.T) {
	tree := t.TempDir()

	require.NoError(t, initramfs.EnsureTreeModulesLink(tree, "6.9.1"))

	link := filepath.Join(tree, "lib", "modules", "6.9.1")

	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "../..", target)

	// The link resolves back to the tree root.
	resolved, err := filepath.EvalSymlinks(link)
	require.NoError(t, err)

	expected, err := filepath.EvalSymlinks(tree)
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)

	// Repeated calls leave the existing entry alone.
	require.NoError(t, initramfs.EnsureTreeModulesLink(tree, "6.9.1"))
}

func TestEnsureTreeModulesLinkKeepsExistingDir(t *testing.T) {
	tree := t.TempDir()

	moduleDir := filepath.Join(tree, "lib", "modules", "6.9.1")
	require.NoError(t, os.MkdirAll(moduleDir, 0o755))

	require.NoError(t, initramfs.EnsureTreeModulesLink(tree, "6.9.1"))

	info, err := os.Lstat(moduleDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
