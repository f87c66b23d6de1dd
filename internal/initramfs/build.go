// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vmexec/vmexec/internal/platform"
)

const (
	archiveName = "initramfs"
	stagingName = "initramfs.d"

	manifestName = "modules.order"

	materializeWorkers = 4
)

// Spec describes the boot payload for one run.
type Spec struct {
	// Root is the module root the kernel's modules live under.
	Root string

	// Release is the kernel release identifier.
	Release string

	// Bus selects the virtio transport bus module.
	Bus platform.Bus

	// Init is the guest init executable copied to /init.
	Init string

	// Dir is the per-invocation temp directory. The archive and its staging
	// root are created inside it, so there is no cross-run caching.
	Dir string
}

// Build assembles the compressed boot archive and returns its path.
//
// The archive contains the resolved module closure (decompressed), a
// manifest listing module load order and the guest init program.
func Build(ctx context.Context, spec Spec) (string, error) {
	modulePaths, err := ModuleClosure(
		ctx, spec.Root, spec.Release, spec.Bus,
	)
	if err != nil {
		return "", err
	}

	staging := filepath.Join(spec.Dir, stagingName)

	moduleNames, err := stageModules(ctx, staging, spec.Release, modulePaths)
	if err != nil {
		return "", err
	}

	err = writeManifest(staging, spec.Release, moduleNames)
	if err != nil {
		return "", err
	}

	err = stageInit(staging, spec.Init)
	if err != nil {
		return "", err
	}

	archivePath := filepath.Join(spec.Dir, archiveName)

	err = writeArchiveFile(archivePath, staging)
	if err != nil {
		return "", err
	}

	slog.Debug("Boot archive created",
		slog.String("path", archivePath),
		slog.Int("modules", len(moduleNames)))

	return archivePath, nil
}

// stageModules materializes the module files into the staging root,
// decompressing as needed. Returns the plain module file names in load
// order.
func stageModules(
	ctx context.Context,
	staging, release string,
	modulePaths []string,
) ([]string, error) {
	moduleDir := filepath.Join(staging, "lib", "modules", release)

	err := os.MkdirAll(moduleDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create staging: %w", err)
	}

	names := make([]string, len(modulePaths))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(materializeWorkers)

	for idx, path := range modulePaths {
		idx, path := idx, path
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err //nolint:wrapcheck
			}

			name, err := materializeModule(moduleDir, path)
			names[idx] = name

			return err
		})
	}

	err = group.Wait()
	if err != nil {
		return nil, err
	}

	return names, nil
}

func materializeModule(moduleDir, path string) (string, error) {
	source, name, err := openModuleFile(path)
	if err != nil {
		return "", err
	}
	defer source.Close()

	target, err := os.OpenFile(
		filepath.Join(moduleDir, name),
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644,
	)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	defer target.Close()

	_, err = io.Copy(target, source)
	if err != nil {
		return "", fmt.Errorf("materialize %s: %w", name, err)
	}

	return name, nil
}

// writeManifest records the module load order for the guest init.
func writeManifest(staging, release string, moduleNames []string) error {
	path := filepath.Join(
		staging, "lib", "modules", release, manifestName,
	)

	content := strings.Join(moduleNames, "\n")
	if content != "" {
		content += "\n"
	}

	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

func stageInit(staging, initPath string) error {
	source, err := os.Open(initPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInitMissing, initPath, err)
	}
	defer source.Close()

	target, err := os.OpenFile(
		filepath.Join(staging, "init"),
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755,
	)
	if err != nil {
		return fmt.Errorf("create init: %w", err)
	}
	defer target.Close()

	_, err = io.Copy(target, source)
	if err != nil {
		return fmt.Errorf("copy init: %w", err)
	}

	return nil
}

func writeArchiveFile(path, staging string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer file.Close()

	err = WriteArchive(file, staging)
	if err != nil {
		return err
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	return nil
}
