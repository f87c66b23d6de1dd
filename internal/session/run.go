// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vmexec/vmexec/internal/qemu"
	"github.com/vmexec/vmexec/internal/script"
)

// Run executes the composed emulator command and recovers the remote
// command's exit status.
//
// Interpretation precedence: a signal-range emulator exit is a crash of the
// emulator itself and propagates with an annotation; any other non-zero
// emulator exit propagates immediately; a zero emulator exit requires a
// recorded result, whose absence is a distinct fatal condition and never
// success.
func Run(
	ctx context.Context,
	spec *Spec,
	stdin io.Reader,
	stdout, stderr io.Writer,
) (int, error) {
	cmd, err := BuildCommand(spec)
	if err != nil {
		return -1, err
	}

	err = cmd.Run(ctx, stdin, stdout, stderr)
	if err != nil {
		return interpretCommandError(err, stderr)
	}

	exitCode, err := script.ReadResult(spec.Channel.ResultPath)
	if err != nil {
		if errors.Is(err, script.ErrResultMissing) ||
			errors.Is(err, script.ErrResultEmpty) {
			return -1, fmt.Errorf(
				"%w; the guest kernel likely crashed before the command"+
					" finished, or the session was quit via the monitor",
				err,
			)
		}

		return -1, err
	}

	return exitCode, nil
}

func interpretCommandError(err error, stderr io.Writer) (int, error) {
	var cmdErr *qemu.CommandError
	if !errors.As(err, &cmdErr) {
		return -1, err
	}

	if cmdErr.Signal {
		// The emulator process died, not the guest kernel.
		fmt.Fprintf(stderr,
			"vmexec: %v (check 'coredumpctl list' for a core dump)\n",
			cmdErr,
		)
	} else {
		slog.Debug("QEMU exited non-zero",
			slog.Int("exitcode", cmdErr.ExitCode))
	}

	// A non-zero emulator exit always takes priority over the result
	// channel.
	return cmdErr.ExitCode, nil
}
