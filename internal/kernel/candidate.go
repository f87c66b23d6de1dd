// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package kernel discovers bootable kernel images on the host and resolves
// a user-supplied match expression against them.
package kernel

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Tier is the discovery source of a candidate. Lower values always outrank
// higher ones, independent of timestamps.
type Tier int

const (
	// TierBuildRoot is the build root's boot directory.
	TierBuildRoot Tier = iota
	// TierBuildDir is a kernel source tree below the build directory.
	TierBuildDir
	// TierInstalled is the host's standard boot directory.
	TierInstalled
)

// String implements [fmt.Stringer].
func (t Tier) String() string {
	switch t {
	case TierBuildRoot:
		return "buildroot"
	case TierBuildDir:
		return "builddir"
	case TierInstalled:
		return "installed"
	default:
		return "unknown"
	}
}

// Candidate is a single discovered kernel image.
type Candidate struct {
	Path    string
	Tier    Tier
	ModTime time.Time
}

// SortCandidates orders candidates by tier first and modification time,
// newest first, within a tier.
func SortCandidates(candidates []Candidate) {
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		if c := cmp.Compare(a.Tier, b.Tier); c != 0 {
			return c
		}

		return b.ModTime.Compare(a.ModTime)
	})
}

// FormatCandidates renders the ranked candidate listing for diagnostics.
func FormatCandidates(candidates []Candidate) string {
	if len(candidates) == 0 {
		return "no kernel images found\n"
	}

	var sb strings.Builder

	for _, candidate := range candidates {
		sb.WriteString(candidate.ModTime.Format(time.DateTime))
		sb.WriteString("  ")
		sb.WriteString(candidate.Tier.String())
		sb.WriteString("  ")
		sb.WriteString(candidate.Path)
		sb.WriteByte('\n')
	}

	return sb.String()
}
