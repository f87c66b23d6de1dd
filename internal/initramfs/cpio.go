// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cavaliergopher/cpio"
)

const dirLinks = 2

// WriteArchive writes the staging directory as a gzip-compressed newc cpio
// archive, the conventional initramfs on-disk format. Owner and group of
// all entries are normalized to 0:0.
func WriteArchive(dst io.Writer, rootDir string) error {
	gzipWriter := gzip.NewWriter(dst)
	cpioWriter := cpio.NewWriter(gzipWriter)

	err := filepath.WalkDir(rootDir,
		func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			name, err := filepath.Rel(rootDir, path)
			if err != nil || name == "." {
				return err //nolint:wrapcheck
			}

			return writeEntry(cpioWriter, name, path, entry)
		})
	if err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	err = cpioWriter.Close()
	if err != nil {
		return fmt.Errorf("close cpio: %w", err)
	}

	err = gzipWriter.Close()
	if err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}

	return nil
}

func writeEntry(
	writer *cpio.Writer,
	name, path string,
	entry fs.DirEntry,
) error {
	info, err := entry.Info()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	switch {
	case entry.IsDir():
		header := &cpio.Header{
			Name:  name,
			Mode:  cpio.TypeDir | cpio.FileMode(info.Mode().Perm()),
			Links: dirLinks,
		}

		return writeHeader(writer, header)
	case entry.Type().IsRegular():
		header := &cpio.Header{
			Name: name,
			Mode: cpio.TypeReg | cpio.FileMode(info.Mode().Perm()),
			Size: info.Size(),
		}

		err := writeHeader(writer, header)
		if err != nil {
			return err
		}

		source, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer source.Close()

		_, err = io.Copy(writer, source)
		if err != nil {
			return fmt.Errorf("write body for %s: %w", name, err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s", ErrFileTypeUnsupported, path)
	}
}

func writeHeader(writer *cpio.Writer, header *cpio.Header) error {
	err := writer.WriteHeader(header)
	if err != nil {
		return fmt.Errorf("write header for %s: %w", header.Name, err)
	}

	return nil
}
