// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmexec/vmexec/internal/sys"
)

func TestUnameMachine(t *testing.T) {
	machine, err := sys.UnameMachine()
	require.NoError(t, err)
	assert.NotEmpty(t, machine)
	assert.NotContains(t, machine, "\x00")
}

func TestMemoryBacked(t *testing.T) {
	// The kind of file system cannot be assumed here, only that the call
	// works on an existing path.
	_, err := sys.MemoryBacked(t.TempDir())
	require.NoError(t, err)

	_, err = sys.MemoryBacked("/nonexistent-vmexec-path")
	require.Error(t, err)
}

func TestExecFailsForUnknownCommand(t *testing.T) {
	err := sys.Exec([]string{"vmexec-does-not-exist"}, nil)
	require.Error(t, err)
}
