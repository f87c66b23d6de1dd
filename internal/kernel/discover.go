// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kernel

import (
	"io/fs"
	"path"
	"strings"
)

// DiscoverConfig holds the search locations. Empty fields disable the
// corresponding tier.
type DiscoverConfig struct {
	// BuildRoot is a disposable root whose boot directory has highest
	// priority.
	BuildRoot string

	// BuildDir is searched, bounded in depth, for kernel source trees.
	BuildDir string

	// BootDir is the host's standard boot directory. Defaults to /boot.
	BootDir string
}

// Kernel image name prefixes accepted in boot directories.
var imagePrefixes = []string{
	"vmlinuz", "vmlinux", "bzImage", "zImage", "uImage", "Image", "image",
}

// Source tree boot images, in order of preference. Compressed and bootable
// formats come before the raw vmlinux, which is only used when nothing else
// was built.
var treeImages = []string{
	"arch/x86/boot/bzImage",
	"arch/arm64/boot/Image.gz",
	"arch/arm64/boot/Image",
	"arch/arm/boot/zImage",
	"arch/powerpc/boot/zImage",
}

const maxMarkerDepth = 3

// Discover enumerates kernel image candidates over the host root fsys in
// ranked order. Missing directories are not an error, they simply yield no
// candidates for their tier.
func Discover(fsys fs.FS, cfg DiscoverConfig) []Candidate {
	var candidates []Candidate

	if cfg.BuildRoot != "" {
		dir := path.Join(cfg.BuildRoot, "boot")
		candidates = append(
			candidates, bootDirCandidates(fsys, dir, TierBuildRoot)...,
		)
	}

	if cfg.BuildDir != "" {
		candidates = append(
			candidates, buildDirCandidates(fsys, cfg.BuildDir)...,
		)
	}

	bootDir := cfg.BootDir
	if bootDir == "" {
		bootDir = "/boot"
	}

	candidates = append(
		candidates, bootDirCandidates(fsys, bootDir, TierInstalled)...,
	)

	SortCandidates(candidates)

	return candidates
}

func bootDirCandidates(fsys fs.FS, dir string, tier Tier) []Candidate {
	entries, err := fs.ReadDir(fsys, fsPath(dir))
	if err != nil {
		return nil
	}

	var candidates []Candidate

	for _, entry := range entries {
		if !entry.Type().IsRegular() || !isImageName(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		candidates = append(candidates, Candidate{
			Path:    path.Join(dir, entry.Name()),
			Tier:    tier,
			ModTime: info.ModTime(),
		})
	}

	return candidates
}

// buildDirCandidates searches the build directory tree for kernel source
// trees, identified by their top-level Makefile and Kbuild files, and
// collects the built boot images from each.
func buildDirCandidates(fsys fs.FS, buildDir string) []Candidate {
	var candidates []Candidate

	for _, tree := range sourceTrees(fsys, buildDir) {
		candidates = append(candidates, treeCandidates(fsys, tree)...)
	}

	return candidates
}

func sourceTrees(fsys fs.FS, buildDir string) []string {
	var trees []string

	root := fsPath(buildDir)

	_ = fs.WalkDir(fsys, root,
		func(walkPath string, entry fs.DirEntry, err error) error {
			if err != nil {
				return fs.SkipDir
			}

			if !entry.IsDir() {
				return nil
			}

			depth := strings.Count(
				strings.TrimPrefix(walkPath, root), "/",
			)
			if depth > maxMarkerDepth {
				return fs.SkipDir
			}

			if isSourceTree(fsys, walkPath) {
				trees = append(trees, "/"+walkPath)
				return fs.SkipDir
			}

			return nil
		})

	return trees
}

func isSourceTree(fsys fs.FS, dir string) bool {
	for _, marker := range []string{"Makefile", "Kbuild"} {
		info, err := fs.Stat(fsys, path.Join(dir, marker))
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	}

	return true
}

func treeCandidates(fsys fs.FS, tree string) []Candidate {
	var candidates []Candidate

	for _, image := range treeImages {
		imagePath := path.Join(tree, image)

		info, err := fs.Stat(fsys, fsPath(imagePath))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		candidates = append(candidates, Candidate{
			Path:    imagePath,
			Tier:    TierBuildDir,
			ModTime: info.ModTime(),
		})
	}

	// The raw vmlinux boots on nothing but is better than an empty tier.
	if len(candidates) == 0 {
		vmlinux := path.Join(tree, "vmlinux")
		if info, err := fs.Stat(fsys, fsPath(vmlinux)); err == nil &&
			info.Mode().IsRegular() {
			candidates = append(candidates, Candidate{
				Path:    vmlinux,
				Tier:    TierBuildDir,
				ModTime: info.ModTime(),
			})
		}
	}

	return candidates
}

func isImageName(name string) bool {
	for _, prefix := range imagePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

// fsPath converts an absolute host path for use with [fs.FS], which
// considers a leading / invalid.
func fsPath(p string) string {
	trimmed := strings.TrimPrefix(p, "/")
	if trimmed == "" {
		return "."
	}

	return trimmed
}
