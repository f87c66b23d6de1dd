// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kernel_test

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmexec/vmexec/internal/kernel"
)

func candidates(paths ...string) []kernel.Candidate {
	list := make([]kernel.Candidate, len(paths))
	for idx, path := range paths {
		list[idx] = kernel.Candidate{Path: path}
	}

	return list
}

func TestSelect(t *testing.T) {
	ranked := candidates(
		"/buildroot/boot/vmlinuz-6.10.0-rc1",
		"/build/linux/arch/x86/boot/bzImage",
		"/boot/vmlinuz-6.9.1-1-default",
		"/boot/vmlinuz-6.9.1-1-debug",
		"/boot/vmlinuz-6.8.0-1-default",
	)

	tests := []struct {
		name        string
		candidates  []kernel.Candidate
		match       string
		expected    string
		expectedErr error
	}{
		{
			name:       "empty match takes first",
			candidates: ranked,
			expected:   "/buildroot/boot/vmlinuz-6.10.0-rc1",
		},
		{
			name:       "path suffix match wins",
			candidates: ranked,
			match:      "vmlinuz-6.9.1-1-debug",
			expected:   "/boot/vmlinuz-6.9.1-1-debug",
		},
		{
			name:       "word match before substring",
			candidates: ranked,
			match:      "6.9.1",
			expected:   "/boot/vmlinuz-6.9.1-1-default",
		},
		{
			name:       "substring fallback",
			candidates: ranked,
			match:      "debu",
			expected:   "/boot/vmlinuz-6.9.1-1-debug",
		},
		{
			name:       "rank preserved within matcher",
			candidates: ranked,
			match:      "default",
			expected:   "/boot/vmlinuz-6.9.1-1-default",
		},
		{
			name:        "no match",
			candidates:  ranked,
			match:       "rt-kernel",
			expectedErr: kernel.ErrNoMatch,
		},
		{
			name:        "no candidates at all",
			match:       "anything",
			expectedErr: kernel.ErrNoKernels,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate, err := kernel.Select(tt.candidates, tt.match)

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, candidate.Path)
		})
	}
}

func TestSelectIdempotent(t *testing.T) {
	ranked := candidates(
		"/boot/vmlinuz-6.9.1-1-default",
		"/boot/vmlinuz-6.8.0-1-default",
	)

	first, err := kernel.Select(ranked, "")
	require.NoError(t, err)

	// Selecting the previous result's name again must return the same
	// candidate.
	again, err := kernel.Select(ranked, first.Path)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestResolve(t *testing.T) {
	modTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	fsys := fstest.MapFS{
		"boot/vmlinuz-6.9.1-1-default": &fstest.MapFile{
			Data:    []byte("ELF"),
			ModTime: modTime,
		},
		"opt/kernels/bzImage": &fstest.MapFile{
			Data:    []byte("ELF"),
			ModTime: modTime,
		},
	}

	t.Run("explicit path bypasses discovery", func(t *testing.T) {
		path, err := kernel.Resolve(
			fsys, kernel.DiscoverConfig{}, "/opt/kernels/bzImage",
		)
		require.NoError(t, err)
		assert.Equal(t, "/opt/kernels/bzImage", path)
	})

	t.Run("match against discovery", func(t *testing.T) {
		path, err := kernel.Resolve(fsys, kernel.DiscoverConfig{}, "6.9.1")
		require.NoError(t, err)
		assert.Equal(t, "/boot/vmlinuz-6.9.1-1-default", path)
	})

	t.Run("no match carries listing", func(t *testing.T) {
		_, err := kernel.Resolve(fsys, kernel.DiscoverConfig{}, "5.4")
		require.ErrorIs(t, err, kernel.ErrNoMatch)

		var notFoundErr *kernel.NotFoundError
		if assert.ErrorAs(t, err, &notFoundErr) {
			assert.NotEmpty(t, notFoundErr.Candidates)
		}
	})
}
