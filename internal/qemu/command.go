// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package qemu composes and runs a single QEMU invocation.
//
// Arguments are built as a list of discrete [Argument] tokens, never by
// string splicing, so values never need shell escaping on the host side.
package qemu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"syscall"
)

const (
	exitCodeSignalOffset = 128

	// Exit codes 129 (SIGHUP), 130 (SIGINT) and 131 (SIGQUIT) are
	// terminal-driven and propagate unannotated. Anything above is treated
	// as a crash of the QEMU process itself.
	crashExitCodeMin = 132
	crashExitCodeMax = 159
)

// IsCrashExitCode reports whether the exit code is in the conventional
// killed-by-signal range that indicates the emulator process itself died.
func IsCrashExitCode(code int) bool {
	return code >= crashExitCodeMin && code <= crashExitCodeMax
}

// Command is a complete QEMU invocation ready to run.
type Command struct {
	name string
	args []string
}

// NewCommand builds a [Command] from the executable name and the composed
// argument list. It fails if the argument list violates uniqueness
// constraints.
func NewCommand(executable string, args []Argument) (*Command, error) {
	argStrings, err := BuildArgumentStrings(args)
	if err != nil {
		return nil, err
	}

	return &Command{
		name: executable,
		args: argStrings,
	}, nil
}

// String returns the command in a form suitable for diagnostics.
func (c *Command) String() string {
	cmd := c.name
	for _, arg := range c.args {
		cmd += " " + arg
	}

	return cmd
}

// Args returns the complete argument string slice.
func (c *Command) Args() []string {
	return c.args
}

// Run starts the QEMU process connected to the given streams and blocks
// until it exits. The wait is unbounded since the guest runs arbitrary user
// commands. Interrupt signals are not intercepted; they reach the child via
// the foreground process group and are exposed to the guest by the
// multiplexed serial console.
//
// It returns nil only if the process terminated with exit code 0. A non-zero
// exit is returned as [CommandError].
func (c *Command) Run(
	ctx context.Context,
	stdin io.Reader,
	stdout, stderr io.Writer,
) error {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	slog.Debug("Starting QEMU", slog.String("command", c.String()))

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %w", ErrNotStarted, err)
	}

	exitCode := waitExitCode(exitErr)

	return &CommandError{
		Err:      err,
		ExitCode: exitCode,
		Signal:   IsCrashExitCode(exitCode),
	}
}

// waitExitCode maps the wait status to the shell convention. A signal death
// reports -1 through [exec.ExitError.ExitCode] and must be translated to
// 128+signum, otherwise the crash range is undetectable and the caller
// propagates a meaningless code.
func waitExitCode(exitErr *exec.ExitError) int {
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if ok && status.Signaled() {
		return exitCodeSignalOffset + int(status.Signal())
	}

	return exitErr.ExitCode()
}
