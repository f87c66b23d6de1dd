// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package platform_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmexec/vmexec/internal/platform"
	"github.com/vmexec/vmexec/internal/qemu"
)

func TestResolveFirmware(t *testing.T) {
	profile, err := platform.Resolve(platform.X86_64)
	require.NoError(t, err)

	tests := []struct {
		name            string
		firmware        platform.Firmware
		files           []string
		expectedArgs    []qemu.Argument
		expectedMachine string
		expectedErr     error
	}{
		{
			name:     "default without any image",
			firmware: platform.Firmware{Kind: platform.FirmwareDefault},
		},
		{
			name:     "default picks first existing",
			firmware: platform.Firmware{Kind: platform.FirmwareDefault},
			files: []string{
				"usr/share/OVMF/OVMF_CODE.fd",
				"usr/share/edk2/ovmf/OVMF_CODE.fd",
			},
			expectedArgs: []qemu.Argument{
				qemu.UniqueArg("bios", "/usr/share/OVMF/OVMF_CODE.fd"),
			},
		},
		{
			name:     "uefi present",
			firmware: platform.Firmware{Kind: platform.FirmwareUEFI},
			files:    []string{"usr/share/qemu/ovmf-x86_64-code.bin"},
			expectedArgs: []qemu.Argument{
				qemu.UniqueArg(
					"bios", "/usr/share/qemu/ovmf-x86_64-code.bin",
				),
			},
		},
		{
			name:        "uefi missing is fatal",
			firmware:    platform.Firmware{Kind: platform.FirmwareUEFI},
			expectedErr: platform.ErrFirmwareNotFound,
		},
		{
			name:     "secureboot present",
			firmware: platform.Firmware{Kind: platform.FirmwareSecureBoot},
			files: []string{
				"usr/share/OVMF/OVMF_CODE.secboot.fd",
				"usr/share/OVMF/OVMF_VARS.secboot.fd",
			},
			expectedArgs: []qemu.Argument{
				qemu.RepeatableArg("drive",
					"if=pflash", "format=raw", "readonly=on",
					"file=/usr/share/OVMF/OVMF_CODE.secboot.fd",
				),
				qemu.RepeatableArg("drive",
					"if=pflash", "format=raw",
					"file=/usr/share/OVMF/OVMF_VARS.secboot.fd",
				),
			},
		},
		{
			name:     "secureboot with vars missing is fatal",
			firmware: platform.Firmware{Kind: platform.FirmwareSecureBoot},
			files: []string{
				"usr/share/OVMF/OVMF_CODE.secboot.fd",
			},
			expectedErr: platform.ErrFirmwareNotFound,
		},
		{
			name:            "microvm without qboot",
			firmware:        platform.Firmware{Kind: platform.FirmwareMicroVM},
			expectedMachine: "microvm,acpi=off",
		},
		{
			name:            "microvm with qboot",
			firmware:        platform.Firmware{Kind: platform.FirmwareMicroVM},
			files:           []string{"usr/share/qemu/qboot.rom"},
			expectedMachine: "microvm,acpi=off",
			expectedArgs: []qemu.Argument{
				qemu.UniqueArg("bios", "/usr/share/qemu/qboot.rom"),
			},
		},
		{
			name: "named resolved in firmware dirs",
			firmware: platform.Firmware{
				Kind: platform.FirmwareNamed,
				Name: "seabios.bin",
			},
			files: []string{"usr/share/qemu/seabios.bin"},
			expectedArgs: []qemu.Argument{
				qemu.UniqueArg("bios", "/usr/share/qemu/seabios.bin"),
			},
		},
		{
			name: "named path used directly",
			firmware: platform.Firmware{
				Kind: platform.FirmwareNamed,
				Name: "/opt/fw/custom.bin",
			},
			files: []string{"opt/fw/custom.bin"},
			expectedArgs: []qemu.Argument{
				qemu.UniqueArg("bios", "/opt/fw/custom.bin"),
			},
		},
		{
			name: "named missing is fatal",
			firmware: platform.Firmware{
				Kind: platform.FirmwareNamed,
				Name: "seabios.bin",
			},
			expectedErr: platform.ErrFirmwareNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{}
			for _, file := range tt.files {
				fsys[file] = &fstest.MapFile{Data: []byte("fw")}
			}

			resolution, err := platform.ResolveFirmware(
				tt.firmware, profile, fsys,
			)

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedArgs, resolution.Args)
			assert.Equal(t, tt.expectedMachine, resolution.Machine)
		})
	}
}
