package udisks

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/stretchr/testify/assert"

	"github.com/kastheco/mountie/device"
	"github.com/kastheco/mountie/session"
)

var _ session.DeviceManager = (*Client)(nil)

func TestByteString(t *testing.T) {
	assert.Equal(t, "/dev/sdb1", byteString([]byte("/dev/sdb1\x00")))
	assert.Equal(t, "/dev/sdb1", byteString([]byte("/dev/sdb1")))
	assert.Equal(t, "", byteString(nil))
}

func TestFirstMountPoint(t *testing.T) {
	assert.Equal(t, "", firstMountPoint(nil))
	assert.Equal(t, "/media/usb", firstMountPoint([][]byte{
		[]byte("/media/usb\x00"),
		[]byte("/mnt/other\x00"),
	}))
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name   string
		ifaces []string
		want   device.Kind
		ok     bool
	}{
		{"filesystem", []string{"org.freedesktop.DBus.Properties", ifaceBlock, ifaceFilesystem}, device.KindFilesystem, true},
		{"encrypted", []string{ifaceBlock, ifaceEncrypted}, device.KindEncrypted, true},
		{"bare block", []string{ifaceBlock, "org.freedesktop.UDisks2.PartitionTable"}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			node := &introspect.Node{}
			for _, name := range tc.ifaces {
				node.Interfaces = append(node.Interfaces, introspect.Interface{Name: name})
			}
			got, ok := kindOf(node)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "16 GB", humanSize(16_000_000_000))
	assert.Equal(t, "8.0 GB", humanSize(8_000_000_000))
	assert.Equal(t, "512 B", humanSize(512))
}

func TestOperationError(t *testing.T) {
	d := device.Descriptor{Handle: "/org/freedesktop/UDisks2/block_devices/sdb1"}
	derr := dbus.Error{
		Name: "org.freedesktop.UDisks2.Error.DeviceBusy",
		Body: []interface{}{"Error unmounting /dev/sdb1: target is busy"},
	}

	err := opError(device.OpUnmount, d, derr)
	var oe *OperationError
	assert.True(t, errors.As(err, &oe))
	assert.Equal(t, device.OpUnmount, oe.Op)
	assert.Equal(t, "unmount /org/freedesktop/UDisks2/block_devices/sdb1: Error unmounting /dev/sdb1: target is busy", err.Error())

	var unwrapped dbus.Error
	assert.True(t, errors.As(err, &unwrapped))

	ptr := opError(device.OpMount, d, dbus.NewError("org.freedesktop.UDisks2.Error.NotAuthorized", nil))
	assert.Contains(t, ptr.Error(), "org.freedesktop.UDisks2.Error.NotAuthorized")

	plain := opError(device.OpEject, d, errors.New("not on an ejectable drive"))
	assert.Contains(t, plain.Error(), "eject")
	assert.Nil(t, opError(device.OpEject, d, nil))
}
