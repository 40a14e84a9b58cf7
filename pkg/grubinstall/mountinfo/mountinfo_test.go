// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mountinfo_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/mountinfo"
)

const mountTable = `proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
/dev/sda2 / ext4 rw,relatime 0 0
/dev/sda1 /boot vfat rw,relatime,fmask=0022 0 0
tmpfs /tmp tmpfs rw,nosuid,nodev 0 0
/dev/sdb1 /boot/efi vfat rw,relatime 0 0

malformed
`

func TestParseMounts(t *testing.T) {
	t.Parallel()

	entries, err := mountinfo.ParseMounts(strings.NewReader(mountTable))
	require.NoError(t, err)

	require.Len(t, entries, 5)

	assert.Equal(t, mountinfo.Entry{Device: "/dev/sda1", Point: "/boot", Filesystem: "vfat"}, entries[2])
	assert.Equal(t, mountinfo.Entry{Device: "/dev/sdb1", Point: "/boot/efi", Filesystem: "vfat"}, entries[4])
}

func TestBestMatch(t *testing.T) {
	t.Parallel()

	entries, err := mountinfo.ParseMounts(strings.NewReader(mountTable))
	require.NoError(t, err)

	for _, test := range []struct {
		name string
		path string

		expectedPoint string
		expectedFound bool
	}{
		{
			name:          "root",
			path:          "/etc",
			expectedPoint: "/",
			expectedFound: true,
		},
		{
			name:          "boot dir itself",
			path:          "/boot",
			expectedPoint: "/boot",
			expectedFound: true,
		},
		{
			name:          "below boot",
			path:          "/boot/grub/i386-pc",
			expectedPoint: "/boot",
			expectedFound: true,
		},
		{
			name:          "nested mount wins",
			path:          "/boot/efi/EFI/BOOT",
			expectedPoint: "/boot/efi",
			expectedFound: true,
		},
		{
			name:          "sibling name prefix is not a match",
			path:          "/bootx",
			expectedPoint: "/",
			expectedFound: true,
		},
		{
			name:          "unclean path",
			path:          "/boot/grub/../grub",
			expectedPoint: "/boot",
			expectedFound: true,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			entry, found := mountinfo.BestMatch(entries, test.path)

			require.Equal(t, test.expectedFound, found)
			assert.Equal(t, test.expectedPoint, entry.Point)
		})
	}

	_, found := mountinfo.BestMatch(nil, "/boot")
	assert.False(t, found)
}

func TestFormatUUID(t *testing.T) {
	t.Parallel()

	id := uuid.UUID{0xab, 0xcd, 0x12, 0x34, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b}

	assert.Equal(t, "ABCD-1234", mountinfo.FormatUUID("vfat", id))
	assert.Equal(t, "ABCD-1234", mountinfo.FormatUUID("msdos", id))
	assert.Equal(t, "abcd1234-0001-0203-0405-060708090a0b", mountinfo.FormatUUID("ext4", id))
}
