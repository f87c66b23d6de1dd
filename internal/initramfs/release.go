// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package initramfs assembles the minimal boot archive for a run: the
// kernel modules required for the shared-filesystem transport plus the
// guest init program, packed as a gzip-compressed newc cpio archive.
package initramfs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// KernelRelease determines the release identifier for the given kernel
// image. For images inside a kernel source tree the build system is asked;
// for installed images the release is parsed from the file name.
func KernelRelease(ctx context.Context, kernelPath string) (string, error) {
	if tree, ok := sourceTreeOf(kernelPath); ok {
		return queryKernelRelease(ctx, tree)
	}

	return parseReleaseFromName(filepath.Base(kernelPath))
}

// SourceTreeOf returns the kernel source tree containing the image, if any.
func SourceTreeOf(kernelPath string) (string, bool) {
	return sourceTreeOf(kernelPath)
}

func sourceTreeOf(kernelPath string) (string, bool) {
	// Built images live at <tree>/arch/<arch>/boot/<image> or directly at
	// <tree>/vmlinux.
	for dir := filepath.Dir(kernelPath); dir != "/" && dir != "."; {
		if isSourceTree(dir) {
			return dir, true
		}

		dir = filepath.Dir(dir)
	}

	return "", false
}

func isSourceTree(dir string) bool {
	for _, marker := range []string{"Makefile", "Kbuild"} {
		info, err := os.Stat(filepath.Join(dir, marker))
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	}

	return true
}

func queryKernelRelease(ctx context.Context, tree string) (string, error) {
	cmd := exec.CommandContext(ctx, "make", "-s", "-C", tree, "kernelrelease")
	cmd.Stderr = os.Stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("query kernelrelease in %s: %w", tree, err)
	}

	release := strings.TrimSpace(string(out))
	if release == "" {
		return "", fmt.Errorf("%w: empty kernelrelease in %s",
			ErrReleaseUnknown, tree)
	}

	return release, nil
}

// parseReleaseFromName extracts the release from image names like
// "vmlinuz-6.9.1-1-default".
func parseReleaseFromName(name string) (string, error) {
	_, release, found := strings.Cut(name, "-")
	if !found || release == "" {
		return "", fmt.Errorf("%w: cannot parse %q", ErrReleaseUnknown, name)
	}

	return release, nil
}
