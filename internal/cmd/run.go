// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cmd implements the vmexec command line program: it resolves the
// run configuration, assembles the boot payload and command channel and
// runs the guest session.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/vmexec/vmexec/internal/initramfs"
	"github.com/vmexec/vmexec/internal/kernel"
	"github.com/vmexec/vmexec/internal/platform"
	"github.com/vmexec/vmexec/internal/qemu"
	"github.com/vmexec/vmexec/internal/script"
	"github.com/vmexec/vmexec/internal/session"
	"github.com/vmexec/vmexec/internal/sys"
)

const defaultInit = "/usr/lib/vmexec/init"

// Run is the real main. It returns the process exit code: the guest
// command's own exit code on success, 1 on any fatal error.
func Run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout, stderr io.Writer,
) int {
	allArgs := append(
		prependedArgs(os.DirFS("."), os.Getenv), args...,
	)

	cfg, err := newFlags(stderr).ParseArgs(allArgs, readEnvHints(os.Getenv))
	if err != nil {
		return 1
	}

	setupLogging(stderr, cfg.verbose)

	exitCode, err := run(ctx, cfg, stdin, stdout, stderr)
	if err != nil {
		slog.Error("Run failed", slog.Any("error", err))
		return 1
	}

	return exitCode
}

func run(
	ctx context.Context,
	cfg *config,
	stdin io.Reader,
	stdout, stderr io.Writer,
) (int, error) {
	command := cfg.command
	if len(command) == 0 {
		command = []string{shellCommand()}
	}

	// Inside the guest the session already runs as root with the host root
	// mounted. Running as actual root means there is nothing to emulate.
	if os.Geteuid() == 0 {
		slog.Debug("Running as root, executing command directly")
		return 0, sys.Exec(command, os.Environ())
	}

	arch, err := platform.HostArch()
	if err != nil {
		return 0, err
	}

	profile, err := platform.Resolve(arch)
	if err != nil {
		return 0, err
	}

	accelMode, err := platform.ParseAccelMode(cfg.kvmMode)
	if err != nil {
		return 0, err
	}

	accelArgs, err := platform.ResolveAccel(accelMode, profile)
	if err != nil {
		if errors.Is(err, platform.ErrAccelSkip) {
			// The caller asked to only run accelerated if possible. Not a
			// failure.
			slog.Warn("Host cannot accelerate, skipping run",
				slog.String("arch", profile.Arch))

			return 0, nil
		}

		return 0, err
	}

	fsys := os.DirFS("/")

	discoverCfg := kernel.DiscoverConfig{
		BuildRoot: cfg.buildRoot,
		BuildDir:  cfg.buildDir,
	}

	if cfg.kernelListing {
		fmt.Fprint(stdout, kernel.FormatCandidates(
			kernel.Discover(fsys, discoverCfg),
		))

		return 0, nil
	}

	kernelPath, err := kernel.Resolve(fsys, discoverCfg, cfg.kernelMatch)
	if err != nil {
		var notFoundErr *kernel.NotFoundError
		if errors.As(err, &notFoundErr) {
			fmt.Fprint(stderr, kernel.FormatCandidates(notFoundErr.Candidates))
		}

		return 0, err
	}

	slog.Debug("Kernel resolved", slog.String("path", kernelPath))

	firmware, err := platform.ResolveFirmware(
		firmwareSelection(cfg), profile, fsys,
	)
	if err != nil {
		return 0, err
	}

	caps := platform.CalculateCaps(profile, cfg.memMB, cfg.cpus)

	// The directory is retained after the run so the script and result file
	// stay available for diagnosis. The host's temp cleanup removes it.
	tempDir, err := os.MkdirTemp("", "vmexec-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return 0, fmt.Errorf("working directory: %w", err)
	}

	channel, err := script.Create(tempDir, script.Spec{
		Command: command,
		WorkDir: workDir,
		Env:     os.Environ(),
		Sbin:    cfg.sbin,
		Silent:  cfg.silent,
	})
	if err != nil {
		return 0, err
	}

	initramfsPath, rollback, err := bootPayload(
		ctx, cfg, profile, kernelPath, tempDir,
	)
	if err != nil {
		return 0, err
	}

	defer func() {
		if restoreErr := rollback.Restore(); restoreErr != nil {
			slog.Error("Restoring module metadata failed",
				slog.Any("error", restoreErr))
		}
	}()

	spec := &session.Spec{
		Profile:   profile,
		Firmware:  firmware,
		Accel:     accelArgs,
		Caps:      caps,
		Kernel:    kernelPath,
		Initramfs: initramfsPath,
		Channel:   channel,
		Machine:   cfg.machine,
		Sandbox:   cfg.sandbox,
		Append:    cfg.appendArgs,
		ExtraArgs: extraArgs(cfg),
		NoQuiet:   cfg.noQuiet || cfg.verbose,
		Verbose:   cfg.verbose,
		Udevd:     cfg.udevd,
		Overlay:   cfg.overlay,
		NoTTY:     !terminalInput(stdin),
	}

	return session.Run(ctx, spec, stdin, stdout, stderr)
}

// bootPayload provides the boot archive for the run, building it unless a
// pre-built one was given. The returned [initramfs.Rollback] reverts any
// temporary module metadata regeneration and is nil-safe.
func bootPayload(
	ctx context.Context,
	cfg *config,
	profile *platform.Profile,
	kernelPath, tempDir string,
) (string, *initramfs.Rollback, error) {
	if cfg.initrd != "" {
		return cfg.initrd, nil, nil
	}

	release, err := initramfs.KernelRelease(ctx, kernelPath)
	if err != nil {
		return "", nil, err
	}

	root := "/"

	if tree, ok := initramfs.SourceTreeOf(kernelPath); ok {
		// A freshly built tree has no lib/modules hierarchy yet.
		err = initramfs.EnsureTreeModulesLink(tree, release)
		if err != nil {
			return "", nil, err
		}

		root = tree
	} else if cfg.buildRoot != "" &&
		strings.HasPrefix(kernelPath, cfg.buildRoot+"/") {
		root = cfg.buildRoot
	}

	rollback, err := initramfs.EnsureModulesDep(
		ctx, root, release, !cfg.depmod,
	)
	if err != nil {
		return "", nil, err
	}

	archivePath, err := initramfs.Build(ctx, initramfs.Spec{
		Root:    root,
		Release: release,
		Bus:     profile.VirtioBus,
		Init:    defaultInit,
		Dir:     tempDir,
	})
	if err != nil {
		if restoreErr := rollback.Restore(); restoreErr != nil {
			err = errors.Join(err, restoreErr)
		}

		return "", nil, err
	}

	return archivePath, rollback, nil
}

func firmwareSelection(cfg *config) platform.Firmware {
	switch {
	case cfg.uefi:
		return platform.Firmware{Kind: platform.FirmwareUEFI}
	case cfg.secureboot:
		return platform.Firmware{Kind: platform.FirmwareSecureBoot}
	case cfg.microvm:
		return platform.Firmware{Kind: platform.FirmwareMicroVM}
	case cfg.bios != "":
		return platform.Firmware{
			Kind: platform.FirmwareNamed,
			Name: cfg.bios,
		}
	default:
		return platform.Firmware{Kind: platform.FirmwareDefault}
	}
}

// extraArgs assembles the pass-through emulator arguments from the raw and
// per-kind flags.
func extraArgs(cfg *config) []qemu.Argument {
	var args []qemu.Argument

	args = append(args, parseRawArgs(cfg.qemuRaw)...)

	for _, path := range cfg.drives {
		args = append(args, qemu.RepeatableArg(
			"drive", "format=raw", "file="+path, "if=virtio",
		))
	}

	for _, opts := range cfg.driveOpts {
		args = append(args, qemu.RepeatableArg("drive", opts))
	}

	for _, dir := range cfg.fatDirs {
		args = append(args, qemu.RepeatableArg(
			"drive", "format=raw", "file=fat:rw:"+dir, "if=virtio",
		))
	}

	for _, kind := range []struct {
		name   string
		values []string
	}{
		{"global", cfg.globals},
		{"object", cfg.objects},
		{"device", cfg.devices},
		{"blockdev", cfg.blockdevs},
		{"netdev", cfg.netdevs},
		{"chardev", cfg.chardevs},
	} {
		for _, value := range kind.values {
			args = append(args, qemu.RepeatableArg(kind.name, value))
		}
	}

	return args
}

// parseRawArgs splits a raw emulator argument string into [qemu.Argument]s.
// A token with a leading dash starts an argument, the following tokens up
// to the next dash token are its value.
func parseRawArgs(raw string) []qemu.Argument {
	var (
		args   []qemu.Argument
		name   string
		values []string
	)

	flush := func() {
		if name != "" {
			args = append(args, qemu.RepeatableArg(
				name, strings.Join(values, " "),
			))
		}

		name = ""
		values = nil
	}

	for _, token := range strings.Fields(raw) {
		if strings.HasPrefix(token, "-") {
			flush()
			name = strings.TrimLeft(token, "-")

			continue
		}

		values = append(values, token)
	}

	flush()

	return args
}

func shellCommand() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}

	return "/bin/sh"
}

func terminalInput(stdin io.Reader) bool {
	file, ok := stdin.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(file.Fd())
}
