// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vmexec/vmexec/internal/cmd"
)

func main() {
	// SIGINT still reaches the emulator via the foreground process group and
	// is forwarded to the guest through the multiplexed serial console. The
	// orchestrator itself must survive it so that deferred cleanup, notably
	// the module metadata rollback, runs even on Ctrl-C before launch.
	signal.Ignore(os.Interrupt)

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGHUP,
	)
	defer cancel()

	os.Exit(cmd.Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
