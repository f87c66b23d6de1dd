// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package script_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmexec/vmexec/internal/script"
)

func writeResult(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "exit")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestReadResult(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expected    int
		expectedErr error
	}{
		{name: "success", content: "0\n", expected: 0},
		{name: "failure", content: "1\n", expected: 1},
		{name: "max", content: "255\n", expected: 255},
		{name: "no trailing newline", content: "42", expected: 42},
		{name: "surrounding whitespace", content: " 7 \n", expected: 7},
		{name: "empty", content: "", expectedErr: script.ErrResultEmpty},
		{name: "blank", content: "\n", expectedErr: script.ErrResultEmpty},
		{
			name:        "garbage",
			content:     "exit",
			expectedErr: script.ErrResultInvalid,
		},
		{
			name:        "negative",
			content:     "-1",
			expectedErr: script.ErrResultInvalid,
		},
		{
			name:        "out of range",
			content:     "256",
			expectedErr: script.ErrResultInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeResult(t, tt.content)

			actual, err := script.ReadResult(path)

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestReadResultMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exit")

	_, err := script.ReadResult(path)
	require.ErrorIs(t, err, script.ErrResultMissing)
}

func TestReadResultRoundTrip(t *testing.T) {
	// The full range a shell can produce.
	for code := 0; code <= 255; code += 17 {
		path := writeResult(t, strconv.Itoa(code)+"\n")

		actual, err := script.ReadResult(path)
		require.NoError(t, err)
		assert.Equal(t, code, actual)
	}
}
