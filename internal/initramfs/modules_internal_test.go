// SPDX-FileCopyrightText: 2025 The vmexec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmexec/vmexec/internal/platform"
)

func TestTransportModules(t *testing.T) {
	assert.Equal(t,
		[]string{"9p", "9pnet_virtio", "virtio_pci"},
		transportModules(platform.BusPCI),
	)
	assert.Equal(t,
		[]string{"9p", "9pnet_virtio", "virtio_mmio"},
		transportModules(platform.BusDevice),
	)
}

func TestParseModprobeDepends(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected []string
	}{
		{
			name: "load order preserved",
			output: "insmod /lib/modules/6.9.1/kernel/net/9p/9pnet.ko\n" +
				"insmod /lib/modules/6.9.1/kernel/net/9p/9pnet_virtio.ko\n" +
				"insmod /lib/modules/6.9.1/kernel/fs/9p/9p.ko\n",
			expected: []string{
				"/lib/modules/6.9.1/kernel/net/9p/9pnet.ko",
				"/lib/modules/6.9.1/kernel/net/9p/9pnet_virtio.ko",
				"/lib/modules/6.9.1/kernel/fs/9p/9p.ko",
			},
		},
		{
			name: "duplicates keep first position",
			output: "insmod /lib/modules/6.9.1/9pnet.ko\n" +
				"insmod /lib/modules/6.9.1/9p.ko\n" +
				"insmod /lib/modules/6.9.1/9pnet.ko\n" +
				"insmod /lib/modules/6.9.1/virtio_pci.ko\n",
			expected: []string{
				"/lib/modules/6.9.1/9pnet.ko",
				"/lib/modules/6.9.1/9p.ko",
				"/lib/modules/6.9.1/virtio_pci.ko",
			},
		},
		{
			name: "builtins skipped",
			output: "builtin virtio_pci\n" +
				"insmod /lib/modules/6.9.1/9p.ko\n",
			expected: []string{"/lib/modules/6.9.1/9p.ko"},
		},
		{
			name: "options after path ignored",
			output: "insmod /lib/modules/6.9.1/9p.ko cache=loose\n",
			expected: []string{
				"/lib/modules/6.9.1/9p.ko",
			},
		},
		{
			name:     "empty output",
			output:   "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := parseModprobeDepends([]byte(tt.output))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}
