// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package script generates the guest-executable command script and recovers
// the command's exit status through the file-based result channel.
//
// The guest process and the orchestrator exit independently, so the exit
// status is persisted to a result file inside the shared file system rather
// than passed through the emulator's own exit code.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"al.essio.dev/pkg/shellescape"

	"github.com/vmexec/vmexec/internal/sys"
)

const (
	scriptName = "script"
	resultName = "exit"

	sbinPath = "/sbin:/usr/sbin:/usr/local/sbin"
)

// Environment variables owned by the orchestrator. They make no sense
// inside the guest and are not reestablished there.
var excludedEnvPrefixes = []string{"VMEXEC_"}

// Identity variables rewritten to the superuser the guest command runs as.
var identityEnv = [][2]string{
	{"HOME", "/root"},
	{"USER", "root"},
	{"LOGNAME", "root"},
}

// MemoryBacked reports whether a path cannot be served through the host
// root export. Overridable for tests.
var MemoryBacked = sys.MemoryBacked

// Spec describes the command the guest executes.
type Spec struct {
	// Command is the caller's command line. Must not be empty; the caller
	// resolves the interactive-shell default.
	Command []string

	// WorkDir is the directory the command runs in.
	WorkDir string

	// Env is the orchestrator's environment, usually [os.Environ].
	Env []string

	// Sbin widens PATH with the system binary directories.
	Sbin bool

	// Silent suppresses echoing the command line before execution.
	Silent bool
}

// Channel is the generated script and its result file. The script is
// retained after the run for diagnosis; only the temp directory's normal
// cleanup removes it.
type Channel struct {
	ScriptPath string
	ResultPath string
}

// Create writes the guest script and an empty result marker into dir.
func Create(dir string, spec Spec) (*Channel, error) {
	channel := &Channel{
		ScriptPath: filepath.Join(dir, scriptName),
		ResultPath: filepath.Join(dir, resultName),
	}

	text, err := Generate(spec, channel.ResultPath)
	if err != nil {
		return nil, err
	}

	err = os.WriteFile(channel.ScriptPath, []byte(text), 0o755)
	if err != nil {
		return nil, fmt.Errorf("write script: %w", err)
	}

	err = os.WriteFile(channel.ResultPath, nil, 0o644)
	if err != nil {
		return nil, fmt.Errorf("write result marker: %w", err)
	}

	return channel, nil
}

// Generate renders the script text. Every value originating from the caller
// is escaped individually, no unescaped shell metacharacters reach the
// guest.
func Generate(spec Spec, resultPath string) (string, error) {
	if len(spec.Command) == 0 {
		return "", ErrEmptyCommand
	}

	var sb strings.Builder

	sb.WriteString("#!/bin/sh\n")

	writeEnv(&sb, spec.Env)

	if spec.Sbin {
		fmt.Fprintf(&sb, "export PATH=\"$PATH:%s\"\n", sbinPath)
	}

	if tmpDir, relocate := relocatedTmpDir(spec.Env); relocate {
		fmt.Fprintf(
			&sb, "export TMPDIR=%s\n", shellescape.Quote(tmpDir),
		)
	}

	fmt.Fprintf(&sb, "cd %s\n", shellescape.Quote(spec.WorkDir))

	command := shellescape.QuoteCommand(spec.Command)

	if !spec.Silent {
		fmt.Fprintf(
			&sb, "printf '+ %%s\\n' %s\n", shellescape.Quote(command),
		)
	}

	sb.WriteString(command + "\n")
	sb.WriteString("vmexec_rc=$?\n")
	sb.WriteString("stty sane 2>/dev/null || :\n")
	fmt.Fprintf(
		&sb, "echo $vmexec_rc > %s\n", shellescape.Quote(resultPath),
	)
	sb.WriteString("exit $vmexec_rc\n")

	return sb.String(), nil
}

func writeEnv(sb *strings.Builder, env []string) {
	for _, pair := range identityEnv {
		fmt.Fprintf(sb, "export %s=%s\n", pair[0], pair[1])
	}

	for _, entry := range env {
		name, value, found := strings.Cut(entry, "=")
		if !found || excludedEnv(name) || isIdentityEnv(name) {
			continue
		}

		fmt.Fprintf(
			sb, "export %s=%s\n", name, shellescape.Quote(value),
		)
	}
}

func isIdentityEnv(name string) bool {
	for _, pair := range identityEnv {
		if pair[0] == name {
			return true
		}
	}

	return false
}

func excludedEnv(name string) bool {
	// PATH and TMPDIR get dedicated handling.
	if name == "PATH" || name == "TMPDIR" {
		return true
	}

	for _, prefix := range excludedEnvPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

// relocatedTmpDir decides the guest's TMPDIR. A host TMPDIR on a
// memory-backed file system is invisible through the root export and is
// replaced with the guest-local /tmp.
func relocatedTmpDir(env []string) (string, bool) {
	for _, entry := range env {
		name, value, found := strings.Cut(entry, "=")
		if !found || name != "TMPDIR" || value == "" {
			continue
		}

		backed, err := MemoryBacked(value)
		if err != nil || backed {
			return "/tmp", true
		}

		return value, true
	}

	return "", false
}
