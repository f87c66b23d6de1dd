// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"io/fs"
	"strings"
)

const (
	argsEnvVar = "VMEXEC_ARGS"
	argsFile   = ".vmexec-args"

	buildRootEnvVar = "VMEXEC_BUILD_ROOT"
	buildDirEnvVar  = "VMEXEC_BUILD_DIR"
)

// envHints are search locations taken from the environment rather than
// flags, so build system wrappers can set them once.
type envHints struct {
	buildRoot string
	buildDir  string
}

func readEnvHints(getenv func(string) string) envHints {
	return envHints{
		buildRoot: getenv(buildRootEnvVar),
		buildDir:  getenv(buildDirEnvVar),
	}
}

// prependedArgs collects arguments from the args file in the working
// directory and the environment variable. They precede the command line, so
// command line flags win whenever a flag is not repeatable.
func prependedArgs(fsys fs.FS, getenv func(string) string) []string {
	var args []string

	args = append(args, fileArgs(fsys)...)
	args = append(args, strings.Fields(getenv(argsEnvVar))...)

	return args
}

// fileArgs reads the local args file, one argument per line. Blank lines
// and comment lines are skipped. A missing file is not an error.
func fileArgs(fsys fs.FS) []string {
	content, err := fs.ReadFile(fsys, argsFile)
	if err != nil {
		return nil
	}

	var args []string

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		args = append(args, line)
	}

	return args
}
