// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Rollback restores a snapshot of the module metadata files taken before a
// temporary regeneration. Restore runs exactly once no matter how often it
// is called; callers bind it to the process lifetime so the host's module
// directory is never left in the regenerated state.
type Rollback struct {
	once     sync.Once
	dir      string
	snapshot string
}

// Restore reverts the module directory to the snapshot state and removes
// the snapshot file.
func (r *Rollback) Restore() error {
	if r == nil {
		return nil
	}

	var err error

	r.once.Do(func() {
		slog.Debug("Restoring module metadata",
			slog.String("dir", r.dir),
			slog.String("snapshot", r.snapshot))

		err = restoreSnapshot(r.dir, r.snapshot)
		if removeErr := os.Remove(r.snapshot); err == nil {
			err = removeErr
		}
	})

	return err
}

// EnsureModulesDep makes sure the kernel's module dependency metadata under
// root exists and is current.
//
// If the metadata is missing or empty and the module directory is writable,
// it is regenerated with depmod. When the root is disposable and the caller
// did not request permanent regeneration, the pre-existing metadata files
// are snapshotted first and the returned [Rollback] reverts them. A nil
// Rollback means there is nothing to revert.
func EnsureModulesDep(
	ctx context.Context,
	root, release string,
	disposable bool,
) (*Rollback, error) {
	moduleDir := filepath.Join(root, "lib", "modules", release)
	depFile := filepath.Join(moduleDir, "modules.dep")

	if info, err := os.Stat(depFile); err == nil && info.Size() > 0 {
		return nil, nil
	}

	if unix.Access(moduleDir, unix.W_OK) != nil {
		return nil, fmt.Errorf(
			"%w: %s is missing or stale and %s is not writable;"+
				" run 'depmod %s' as root or pass --depmod",
			ErrDepmod, depFile, moduleDir, release,
		)
	}

	var rollback *Rollback

	if disposable {
		snapshot, err := snapshotMetadata(moduleDir)
		if err != nil {
			return nil, err
		}

		rollback = &Rollback{dir: moduleDir, snapshot: snapshot}
	}

	slog.Debug("Regenerating module metadata",
		slog.String("root", root),
		slog.String("release", release))

	err := runDepmod(ctx, root, release)
	if err != nil {
		// The directory must not stay half-regenerated.
		if restoreErr := rollback.Restore(); restoreErr != nil {
			err = errors.Join(err, restoreErr)
		}

		return nil, err
	}

	return rollback, nil
}

func runDepmod(ctx context.Context, root, release string) error {
	args := []string{"-b", root, release}

	cmd := exec.CommandContext(ctx, "depmod", args...)
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("%w: depmod -b %s %s: %w",
			ErrDepmod, root, release, err)
	}

	return nil
}

// snapshotMetadata writes all modules.* files of the directory into a tar
// archive next to the directory's temp space. The snapshot name embeds the
// PID so concurrent runs do not clobber each other's snapshot.
func snapshotMetadata(moduleDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(moduleDir, "modules.*"))
	if err != nil {
		return "", fmt.Errorf("glob metadata: %w", err)
	}

	snapshot := filepath.Join(
		os.TempDir(), fmt.Sprintf("vmexec-modmeta-%d.tar", os.Getpid()),
	)

	file, err := os.Create(snapshot)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer file.Close()

	tarWriter := tar.NewWriter(file)
	defer tarWriter.Close()

	for _, match := range matches {
		err := addToSnapshot(tarWriter, match)
		if err != nil {
			_ = os.Remove(snapshot)
			return "", err
		}
	}

	err = tarWriter.Close()
	if err != nil {
		_ = os.Remove(snapshot)
		return "", fmt.Errorf("close snapshot: %w", err)
	}

	return snapshot, nil
}

func addToSnapshot(tarWriter *tar.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("header %s: %w", path, err)
	}

	header.Name = filepath.Base(path)

	err = tarWriter.WriteHeader(header)
	if err != nil {
		return fmt.Errorf("write header %s: %w", path, err)
	}

	source, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer source.Close()

	_, err = io.Copy(tarWriter, source)
	if err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}

	return nil
}

// restoreSnapshot removes the current modules.* files and unpacks the
// snapshot in their place.
func restoreSnapshot(moduleDir, snapshot string) error {
	matches, err := filepath.Glob(filepath.Join(moduleDir, "modules.*"))
	if err != nil {
		return fmt.Errorf("glob metadata: %w", err)
	}

	for _, match := range matches {
		err := os.Remove(match)
		if err != nil {
			return fmt.Errorf("remove %s: %w", match, err)
		}
	}

	file, err := os.Open(snapshot)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	tarReader := tar.NewReader(file)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}

		err = restoreFile(moduleDir, header, tarReader)
		if err != nil {
			return err
		}
	}
}

func restoreFile(
	moduleDir string,
	header *tar.Header,
	content io.Reader,
) error {
	// Snapshot entries are flat file names, but do not trust them.
	name := filepath.Base(header.Name)
	path := filepath.Join(moduleDir, name)

	target, err := os.OpenFile(
		path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
		os.FileMode(header.Mode),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer target.Close()

	_, err = io.Copy(target, content)
	if err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}

	return nil
}
