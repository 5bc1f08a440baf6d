package udisks

import (
	"bytes"
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/kastheco/mountie/device"
)

const rootPath = dbus.ObjectPath("/")

// property reads iface.name of the object at path into v.
func (c *Client) property(ctx context.Context, path dbus.ObjectPath, iface, name string, v any) error {
	var variant dbus.Variant
	err := c.conn.Object(busName, path).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, iface, name).
		Store(&variant)
	if err != nil {
		return fmt.Errorf("get %s.%s of %s: %w", iface, name, path, err)
	}
	if err := variant.Store(v); err != nil {
		return fmt.Errorf("decode %s.%s of %s: %w", iface, name, path, err)
	}
	return nil
}

// byteString decodes a NUL-terminated D-Bus byte array.
func byteString(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

// firstMountPoint returns the first entry of a MountPoints property.
func firstMountPoint(points [][]byte) string {
	if len(points) == 0 {
		return ""
	}
	return byteString(points[0])
}

// kindOf derives the device kind from the interfaces an object implements.
func kindOf(node *introspect.Node) (device.Kind, bool) {
	for _, iface := range node.Interfaces {
		switch iface.Name {
		case ifaceFilesystem:
			return device.KindFilesystem, true
		case ifaceEncrypted:
			return device.KindEncrypted, true
		}
	}
	return 0, false
}

func (c *Client) mountPoint(ctx context.Context, path dbus.ObjectPath) (string, error) {
	var points [][]byte
	if err := c.property(ctx, path, ifaceFilesystem, "MountPoints", &points); err != nil {
		return "", err
	}
	return firstMountPoint(points), nil
}

// cleartext returns the unlocked device of an encrypted container, or "/".
func (c *Client) cleartext(ctx context.Context, path dbus.ObjectPath) (dbus.ObjectPath, error) {
	var ct dbus.ObjectPath
	if err := c.property(ctx, path, ifaceEncrypted, "CleartextDevice", &ct); err != nil {
		return "", err
	}
	return ct, nil
}

// blockInfo reads the display attributes of a block device.
func (c *Client) blockInfo(ctx context.Context, path dbus.ObjectPath) (device.Info, error) {
	var (
		dev   []byte
		label string
		size  uint64
	)
	if err := c.property(ctx, path, ifaceBlock, "Device", &dev); err != nil {
		return device.Info{}, err
	}
	if err := c.property(ctx, path, ifaceBlock, "IdLabel", &label); err != nil {
		return device.Info{}, err
	}
	if err := c.property(ctx, path, ifaceBlock, "Size", &size); err != nil {
		return device.Info{}, err
	}
	return device.Info{Name: byteString(dev), Label: label, Size: humanSize(size)}, nil
}
