// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// openModuleFile opens a kernel module file for reading, transparently
// decompressing compressed modules. The minimal kernel's module loader
// cannot decompress, so modules are stored plain in the archive. The
// returned name is the plain .ko file name.
func openModuleFile(path string) (io.ReadCloser, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open module: %w", err)
	}

	base := path[strings.LastIndexByte(path, '/')+1:]

	switch {
	case strings.HasSuffix(path, ".ko"):
		return file, base, nil
	case strings.HasSuffix(path, ".ko.gz"):
		reader, err := gzip.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, "", fmt.Errorf("gzip %s: %w", path, err)
		}

		return &moduleReader{reader, file}, strings.TrimSuffix(base, ".gz"),
			nil
	case strings.HasSuffix(path, ".ko.xz"):
		reader, err := xz.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, "", fmt.Errorf("xz %s: %w", path, err)
		}

		return &moduleReader{reader, file}, strings.TrimSuffix(base, ".xz"),
			nil
	case strings.HasSuffix(path, ".ko.zst"):
		decoder, err := zstd.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, "", fmt.Errorf("zstd %s: %w", path, err)
		}

		return &zstdModuleReader{decoder, file},
			strings.TrimSuffix(base, ".zst"), nil
	default:
		_ = file.Close()
		return nil, "", fmt.Errorf("%w: %s", ErrModuleFormat, path)
	}
}

type moduleReader struct {
	io.Reader
	file *os.File
}

func (r *moduleReader) Close() error {
	return r.file.Close()
}

type zstdModuleReader struct {
	decoder *zstd.Decoder
	file    *os.File
}

func (r *zstdModuleReader) Read(p []byte) (int, error) {
	return r.decoder.Read(p) //nolint:wrapcheck
}

func (r *zstdModuleReader) Close() error {
	r.decoder.Close()
	return r.file.Close()
}
