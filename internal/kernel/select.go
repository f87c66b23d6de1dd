// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kernel

import (
	"io/fs"
	"strings"
)

// Select resolves the match expression against the ranked candidate list.
//
// A non-empty match is searched for, in order of preference, an exact
// path-suffix match, a whole-word substring match and any substring match.
// The first hit within a preference level wins, so tier ranking is
// preserved. An empty match takes the first candidate overall.
func Select(candidates []Candidate, match string) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, &NotFoundError{
			Match:      match,
			Candidates: candidates,
		}
	}

	if match == "" {
		return candidates[0], nil
	}

	matchers := []func(Candidate) bool{
		func(c Candidate) bool { return pathSuffixMatch(c.Path, match) },
		func(c Candidate) bool { return wordMatch(c.Path, match) },
		func(c Candidate) bool { return strings.Contains(c.Path, match) },
	}

	for _, matches := range matchers {
		for _, candidate := range candidates {
			if matches(candidate) {
				return candidate, nil
			}
		}
	}

	return Candidate{}, &NotFoundError{Match: match, Candidates: candidates}
}

// Resolve picks the kernel image path for a run. An explicit existing
// regular file path bypasses discovery entirely.
func Resolve(
	fsys fs.FS,
	cfg DiscoverConfig,
	match string,
) (string, error) {
	if match != "" {
		info, err := fs.Stat(fsys, fsPath(match))
		if err == nil && info.Mode().IsRegular() {
			return match, nil
		}
	}

	candidate, err := Select(Discover(fsys, cfg), match)
	if err != nil {
		return "", err
	}

	return candidate.Path, nil
}

func pathSuffixMatch(candidatePath, match string) bool {
	if candidatePath == match {
		return true
	}

	return strings.HasSuffix(candidatePath, "/"+strings.TrimPrefix(match, "/"))
}

// wordMatch reports whether match occurs in s delimited by non-word
// characters, so "def" matches "vmlinuz-6.9-def" but not
// "vmlinuz-6.9-default".
func wordMatch(s, match string) bool {
	for start := 0; ; {
		idx := strings.Index(s[start:], match)
		if idx < 0 {
			return false
		}

		idx += start

		before := idx - 1
		after := idx + len(match)

		if (before < 0 || !isWordByte(s[before])) &&
			(after >= len(s) || !isWordByte(s[after])) {
			return true
		}

		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}
