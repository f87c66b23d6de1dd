// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReleaseFromName(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    string
		expectedErr error
	}{
		{
			name:     "distribution kernel",
			input:    "vmlinuz-6.9.1-1-default",
			expected: "6.9.1-1-default",
		},
		{
			name:     "plain version",
			input:    "vmlinuz-6.9.1",
			expected: "6.9.1",
		},
		{
			name:        "no separator",
			input:       "bzImage",
			expectedErr: ErrReleaseUnknown,
		},
		{
			name:        "trailing separator",
			input:       "vmlinuz-",
			expectedErr: ErrReleaseUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := parseReleaseFromName(tt.input)

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestSourceTreeOf(t *testing.T) {
	tree := t.TempDir()

	for _, marker := range []string{"Makefile", "Kbuild"} {
		require.NoError(t, os.WriteFile(
			filepath.Join(tree, marker), []byte("obj-y :=\n"), 0o644,
		))
	}

	bootDir := filepath.Join(tree, "arch", "x86", "boot")
	require.NoError(t, os.MkdirAll(bootDir, 0o755))

	imagePath := filepath.Join(bootDir, "bzImage")
	require.NoError(t, os.WriteFile(imagePath, []byte("ELF"), 0o644))

	t.Run("image inside tree", func(t *testing.T) {
		actual, ok := SourceTreeOf(imagePath)
		require.True(t, ok)
		assert.Equal(t, tree, actual)
	})

	t.Run("installed image", func(t *testing.T) {
		installed := filepath.Join(t.TempDir(), "vmlinuz-6.9.1")
		require.NoError(t, os.WriteFile(installed, []byte("ELF"), 0o644))

		_, ok := SourceTreeOf(installed)
		assert.False(t, ok)
	})
}
