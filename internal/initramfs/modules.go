// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/vmexec/vmexec/internal/platform"
)

// transportModules returns the modules required to boot with the 9p shared
// file system over virtio: the file system itself, its virtio network
// transport and exactly one virtio bus module matching the machine type.
func transportModules(bus platform.Bus) []string {
	return []string{"9p", "9pnet_virtio", bus.TransportModule()}
}

// ModuleClosure resolves the minimal module file set required to boot with
// the shared-filesystem transport, in load order. It relies on modprobe's
// dependency resolution against the metadata ensured by
// [EnsureModulesDep]. Built-in modules resolve to an empty contribution.
func ModuleClosure(
	ctx context.Context,
	root, release string,
	bus platform.Bus,
) ([]string, error) {
	args := []string{
		"-d", root,
		"-S", release,
		"--show-depends",
		"--ignore-install",
	}
	args = append(args, transportModules(bus)...)

	cmd := exec.CommandContext(ctx, "modprobe", args...)
	cmd.Stderr = os.Stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf(
			"%w: modprobe %s: %w",
			ErrModprobe, strings.Join(args, " "), err,
		)
	}

	return parseModprobeDepends(out)
}

// parseModprobeDepends extracts the module file paths from modprobe
// --show-depends output. Lines look like "insmod /path/to/mod.ko" or
// "builtin name"; builtins need no file. Duplicates keep their first
// position so load order is preserved.
func parseModprobeDepends(out []byte) ([]string, error) {
	var paths []string

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		directive, rest, found := strings.Cut(line, " ")
		if !found || directive != "insmod" {
			continue
		}

		// Options may follow the path.
		path, _, _ := strings.Cut(rest, " ")
		if path == "" {
			continue
		}

		if !slices.Contains(paths, path) {
			paths = append(paths, path)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse modprobe output: %w", err)
	}

	return paths, nil
}
