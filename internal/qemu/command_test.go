// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmexec/vmexec/internal/qemu"
)

func TestIsCrashExitCode(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected bool
	}{
		{name: "success", code: 0, expected: false},
		{name: "plain failure", code: 1, expected: false},
		{name: "sighup", code: 129, expected: false},
		{name: "sigint", code: 130, expected: false},
		{name: "sigquit", code: 131, expected: false},
		{name: "sigill", code: 132, expected: true},
		{name: "sigsegv", code: 139, expected: true},
		{name: "range end", code: 159, expected: true},
		{name: "above range", code: 160, expected: false},
		{name: "max", code: 255, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, qemu.IsCrashExitCode(tt.code))
		})
	}
}

func TestNewCommandCollision(t *testing.T) {
	_, err := qemu.NewCommand("qemu-system-x86_64", []qemu.Argument{
		qemu.UniqueArg("kernel", "a"),
		qemu.UniqueArg("kernel", "b"),
	})
	require.ErrorIs(t, err, qemu.ErrArgumentCollision)
}

func TestCommandRun(t *testing.T) {
	tests := []struct {
		name             string
		executable       string
		args             []qemu.Argument
		expectedErr      error
		expectedExitCode int
		expectedSignal   bool
	}{
		{
			name:       "zero exit",
			executable: "true",
		},
		{
			name:             "non-zero exit",
			executable:       "false",
			expectedErr:      &qemu.CommandError{},
			expectedExitCode: 1,
		},
		{
			name:       "killed by signal",
			executable: "sh",
			args: []qemu.Argument{
				qemu.RepeatableArg("c", "kill -SEGV $$"),
			},
			expectedErr:      &qemu.CommandError{},
			expectedExitCode: 139,
			expectedSignal:   true,
		},
		{
			name:       "terminal driven signal unannotated",
			executable: "sh",
			args: []qemu.Argument{
				qemu.RepeatableArg("c", "kill -INT $$"),
			},
			expectedErr:      &qemu.CommandError{},
			expectedExitCode: 130,
			expectedSignal:   false,
		},
		{
			name:        "not startable",
			executable:  "vmexec-does-not-exist",
			expectedErr: qemu.ErrNotStarted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := qemu.NewCommand(tt.executable, tt.args)
			require.NoError(t, err)

			var stdout, stderr bytes.Buffer

			err = cmd.Run(context.Background(), nil, &stdout, &stderr)

			if tt.expectedErr == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tt.expectedErr)

			var cmdErr *qemu.CommandError
			if !errors.As(err, &cmdErr) {
				// Startup failures never carry an exit code.
				return
			}

			assert.Equal(t, tt.expectedExitCode, cmdErr.ExitCode)
			assert.Equal(t, tt.expectedSignal, cmdErr.Signal)
		})
	}
}

func TestCommandString(t *testing.T) {
	cmd, err := qemu.NewCommand("qemu-system-x86_64", []qemu.Argument{
		qemu.UniqueArg("kernel", "/boot/vmlinuz"),
		qemu.UniqueArg("nodefaults"),
	})
	require.NoError(t, err)

	assert.Equal(
		t, "qemu-system-x86_64 -kernel /boot/vmlinuz -nodefaults",
		cmd.String(),
	)
}
