// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/docker/go-units"
	flag "github.com/spf13/pflag"
)

const (
	name = "vmexec"

	sandboxDefault = "on,spawn=deny"
	kvmDefault     = "try"

	mbFactor = 1024 * 1024

	usageMessage = `Usage: vmexec [options...] [--] [command [args...]]

Runs the command inside a transient emulated kernel with the host root
shared read/write, and exits with the command's exit code. Without a
command an interactive root shell is started.

All options can also be provided via environment variable VMEXEC_ARGS or
via file ./.vmexec-args, one option per line.
`
)

// config is the complete, immutable per-run configuration built once from
// the parsed options.
type config struct {
	silent  bool
	verbose bool
	noQuiet bool
	sbin    bool
	udevd   bool
	depmod  bool

	kvmMode string
	sandbox string
	machine string
	overlay string

	bios       string
	uefi       bool
	secureboot bool
	microvm    bool

	memMB uint64
	cpus  uint64

	kernelMatch   string
	kernelListing bool
	initrd        string

	appendArgs []string
	qemuRaw    string
	drives     []string
	driveOpts  []string
	fatDirs    []string
	globals    []string
	objects    []string
	devices    []string
	blockdevs  []string
	netdevs    []string
	chardevs   []string

	buildRoot string
	buildDir  string

	command []string
}

type flags struct {
	cfg     config
	flagSet *flag.FlagSet
	output  io.Writer

	tcg bool
	mem string
}

func newFlags(output io.Writer) *flags {
	f := &flags{
		cfg: config{
			kvmMode: kvmDefault,
			sandbox: sandboxDefault,
		},
		output: output,
	}

	f.initFlagSet(output)

	return f
}

func (f *flags) initFlagSet(output io.Writer) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.SortFlags = false
	flagSet.Usage = f.usage

	flagSet.BoolVarP(&f.cfg.silent, "silent", "s", false,
		"do not echo the command in the guest")
	flagSet.BoolVar(&f.cfg.verbose, "verbose", false,
		"enable debug output on the host and in the guest")
	flagSet.BoolVar(&f.cfg.noQuiet, "no-quiet", false,
		"keep guest kernel boot messages")
	flagSet.BoolVar(&f.cfg.sbin, "sbin", false,
		"add the system binary directories to the guest PATH")
	flagSet.BoolVar(&f.cfg.udevd, "udevd", false,
		"start udevd in the guest")
	flagSet.StringVar(&f.cfg.qemuRaw, "qemu", "",
		"extra raw qemu arguments")
	flagSet.StringArrayVar(&f.cfg.appendArgs, "append", nil,
		"extra kernel cmdline string, may be repeated")
	flagSet.StringArrayVar(&f.cfg.drives, "drive", nil,
		"attach a disk image file as virtio drive, may be repeated")
	flagSet.StringArrayVar(&f.cfg.driveOpts, "drive-opts", nil,
		"attach a drive with raw qemu drive options, may be repeated")
	flagSet.StringArrayVar(&f.cfg.fatDirs, "fat", nil,
		"attach a directory as FAT drive, may be repeated")
	flagSet.StringVar(&f.cfg.overlay, "overlay", "",
		"overlay spec passed to the guest init")
	flagSet.StringVar(&f.cfg.bios, "bios", "",
		"firmware image name or path")
	flagSet.BoolVar(&f.cfg.uefi, "uefi", false,
		"boot with the architecture's UEFI firmware")
	flagSet.BoolVar(&f.cfg.secureboot, "secureboot", false,
		"boot with the architecture's secure boot firmware")
	flagSet.BoolVar(&f.cfg.microvm, "microvm", false,
		"use the minimal microvm machine type")
	flagSet.StringVar(&f.cfg.machine, "machine", "",
		"qemu machine type options")
	flagSet.StringArrayVar(&f.cfg.globals, "global", nil,
		"qemu -global options, may be repeated")
	flagSet.StringArrayVar(&f.cfg.objects, "object", nil,
		"qemu -object options, may be repeated")
	flagSet.StringArrayVar(&f.cfg.devices, "device", nil,
		"qemu -device options, may be repeated")
	flagSet.StringArrayVar(&f.cfg.blockdevs, "blockdev", nil,
		"qemu -blockdev options, may be repeated")
	flagSet.StringArrayVar(&f.cfg.netdevs, "netdev", nil,
		"qemu -netdev options, may be repeated")
	flagSet.StringArrayVar(&f.cfg.chardevs, "chardev", nil,
		"qemu -chardev options, may be repeated")
	flagSet.StringVar(&f.cfg.sandbox, "sandbox", sandboxDefault,
		"qemu syscall sandbox spec")
	flagSet.BoolVar(&f.tcg, "tcg", false,
		"force software emulation")
	flagSet.StringVar(&f.cfg.kvmMode, "kvm", kvmDefault,
		"acceleration mode: try, if, only, any, default, off")
	flagSet.StringVar(&f.mem, "mem", "",
		"guest memory size, e.g. 2G")
	flagSet.Uint64Var(&f.cfg.cpus, "cpu", 0,
		"guest CPU count")
	flagSet.StringVar(&f.cfg.kernelMatch, "kernel", "",
		"kernel to boot: path or match string; bare --kernel lists candidates")
	flagSet.BoolVar(&f.cfg.depmod, "depmod", false,
		"regenerate module metadata permanently, no rollback")
	flagSet.StringVar(&f.cfg.initrd, "initrd", "",
		"use a pre-built boot archive instead of building one")

	f.flagSet = flagSet
}

// ParseArgs parses the full argument list, including the trailing
// positional command, into the run configuration.
func (f *flags) ParseArgs(args []string, env envHints) (*config, error) {
	err := f.flagSet.Parse(rewriteArgs(args))
	if err != nil {
		if err == flag.ErrHelp {
			return nil, ErrHelp
		}

		return nil, &ParseArgsError{msg: "flag parse", err: err}
	}

	kernelFlag := f.flagSet.Lookup("kernel")
	f.cfg.kernelListing = kernelFlag.Changed && f.cfg.kernelMatch == ""

	if f.tcg {
		f.cfg.kvmMode = "off"
	}

	if f.mem != "" {
		memBytes, err := units.RAMInBytes(f.mem)
		if err != nil {
			return nil, f.fail("memory size", err)
		}

		f.cfg.memMB = uint64(memBytes) / mbFactor
	}

	if countFirmwareFlags(&f.cfg) > 1 {
		return nil, f.fail("conflicting firmware options", nil)
	}

	f.cfg.buildRoot = env.buildRoot
	f.cfg.buildDir = env.buildDir

	f.cfg.command = f.flagSet.Args()

	// An empty command defaults to an interactive shell with the system
	// binary directories in PATH.
	if len(f.cfg.command) == 0 {
		f.cfg.sbin = true
	}

	return &f.cfg, nil
}

// rewriteArgs normalizes the historical spellings: a bare "--kernel" is an
// explicit empty match (listing mode) and "-drive=OPTS" is the raw drive
// variant.
func rewriteArgs(args []string) []string {
	rewritten := make([]string, 0, len(args))

	for idx, arg := range args {
		switch {
		case arg == "--":
			rewritten = append(rewritten, args[idx:]...)
			return rewritten
		case arg == "--kernel":
			rewritten = append(rewritten, "--kernel=")
		case strings.HasPrefix(arg, "-drive="):
			rewritten = append(
				rewritten, "--drive-opts="+strings.TrimPrefix(arg, "-drive="),
			)
		default:
			rewritten = append(rewritten, arg)
		}
	}

	return rewritten
}

func countFirmwareFlags(cfg *config) int {
	count := 0

	for _, set := range []bool{
		cfg.bios != "", cfg.uefi, cfg.secureboot, cfg.microvm,
	} {
		if set {
			count++
		}
	}

	return count
}

// fail fails like flag does. It prints the error first and then usage.
func (f *flags) fail(msg string, err error) error {
	parseErr := &ParseArgsError{msg: msg, err: err}
	fmt.Fprintln(f.output, parseErr.Error())

	f.flagSet.Usage()

	return parseErr
}

func (f *flags) usage() {
	fmt.Fprint(f.output, usageMessage)
	fmt.Fprintln(f.output, "\nOptions:")
	fmt.Fprint(f.output, f.flagSet.FlagUsages())
}
