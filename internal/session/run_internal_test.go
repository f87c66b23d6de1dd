// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmexec/vmexec/internal/qemu"
)

func TestInterpretCommandError(t *testing.T) {
	t.Run("signal exit is annotated", func(t *testing.T) {
		var stderr bytes.Buffer

		cmdErr := &qemu.CommandError{
			Err:      errors.New("exit status 139"),
			ExitCode: 139,
			Signal:   true,
		}

		exitCode, err := interpretCommandError(cmdErr, &stderr)
		require.NoError(t, err)
		assert.Equal(t, 139, exitCode)
		assert.Contains(t, stderr.String(), "coredumpctl list")
	})

	t.Run("plain non-zero exit propagates", func(t *testing.T) {
		var stderr bytes.Buffer

		cmdErr := &qemu.CommandError{
			Err:      errors.New("exit status 1"),
			ExitCode: 1,
		}

		exitCode, err := interpretCommandError(cmdErr, &stderr)
		require.NoError(t, err)
		assert.Equal(t, 1, exitCode)
		assert.Empty(t, stderr.String())
	})

	t.Run("other errors are fatal", func(t *testing.T) {
		var stderr bytes.Buffer

		startErr := errors.New("process did not start")

		exitCode, err := interpretCommandError(startErr, &stderr)
		require.ErrorIs(t, err, startErr)
		assert.Equal(t, -1, exitCode)
	})
}
