// Package udisks drives UDisks2 over the system bus. Client implements the
// session's device manager.
package udisks

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/kastheco/mountie/device"
	"github.com/kastheco/mountie/log"
	"github.com/kastheco/mountie/secret"
)

const (
	busName     = "org.freedesktop.UDisks2"
	managerPath = dbus.ObjectPath("/org/freedesktop/UDisks2/Manager")

	ifaceManager    = "org.freedesktop.UDisks2.Manager"
	ifaceBlock      = "org.freedesktop.UDisks2.Block"
	ifaceFilesystem = "org.freedesktop.UDisks2.Filesystem"
	ifaceEncrypted  = "org.freedesktop.UDisks2.Encrypted"
	ifaceDrive      = "org.freedesktop.UDisks2.Drive"
)

// Client is a UDisks2 client. It is safe for concurrent use.
type Client struct {
	conn  *dbus.Conn
	owned bool
}

// Connect opens a private connection to the system bus.
func Connect() (*Client, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	return &Client{conn: conn, owned: true}, nil
}

// NewClient wraps an existing connection. Close leaves it open.
func NewClient(conn *dbus.Conn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection if the client opened it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.conn.Close()
}

func humanSize(n uint64) string {
	return humanize.Bytes(n)
}

func noOptions() map[string]dbus.Variant {
	return map[string]dbus.Variant{}
}

func (c *Client) call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) *dbus.Call {
	return c.conn.Object(busName, path).CallWithContext(ctx, method, 0, args...)
}

// ListDevices returns the filesystems and encrypted containers UDisks2 knows
// about. Ignored devices and cleartext devices of unlocked containers are
// skipped.
func (c *Client) ListDevices(ctx context.Context) ([]device.Descriptor, error) {
	var paths []dbus.ObjectPath
	if err := c.call(ctx, managerPath, ifaceManager+".GetBlockDevices", noOptions()).Store(&paths); err != nil {
		return nil, fmt.Errorf("get block devices: %w", err)
	}

	var out []device.Descriptor
	for _, path := range paths {
		var ignore bool
		if err := c.property(ctx, path, ifaceBlock, "HintIgnore", &ignore); err != nil {
			return nil, err
		}
		if ignore {
			continue
		}
		var backing dbus.ObjectPath
		if err := c.property(ctx, path, ifaceBlock, "CryptoBackingDevice", &backing); err != nil {
			return nil, err
		}
		if backing != rootPath {
			continue
		}
		node, err := introspect.Call(c.conn.Object(busName, path))
		if err != nil {
			return nil, fmt.Errorf("introspect %s: %w", path, err)
		}
		kind, ok := kindOf(node)
		if !ok {
			continue
		}
		out = append(out, device.Descriptor{Handle: string(path), Kind: kind})
	}
	return out, nil
}

// probe reads the live state of d. For unlocked containers it also returns
// the cleartext device.
func (c *Client) probe(ctx context.Context, d device.Descriptor) (state device.State, fsPath dbus.ObjectPath, mountPoint string, err error) {
	path := dbus.ObjectPath(d.Handle)
	switch d.Kind {
	case device.KindFilesystem:
		mp, err := c.mountPoint(ctx, path)
		if err != nil {
			return 0, "", "", err
		}
		if mp != "" {
			return device.StateMounted, path, mp, nil
		}
		return device.StateUnmounted, path, "", nil
	case device.KindEncrypted:
		ct, err := c.cleartext(ctx, path)
		if err != nil {
			return 0, "", "", err
		}
		if ct == rootPath || ct == "" {
			return device.StateLocked, "", "", nil
		}
		mp, err := c.mountPoint(ctx, ct)
		if err != nil {
			// unlocked without a filesystem on top
			log.DebugLog.Printf("no filesystem on %s: %v", ct, err)
			return device.StateUnmountedUnlocked, ct, "", nil
		}
		if mp != "" {
			return device.StateMounted, ct, mp, nil
		}
		return device.StateUnmountedUnlocked, ct, "", nil
	}
	return 0, "", "", fmt.Errorf("unknown device kind %s", d.Kind)
}

// ReadAttributes reads display attributes and state. An unlocked container
// is shown with the attributes of its cleartext device.
func (c *Client) ReadAttributes(ctx context.Context, d device.Descriptor) (device.Attributes, error) {
	state, fsPath, mp, err := c.probe(ctx, d)
	if err != nil {
		return device.Attributes{}, err
	}
	infoPath := dbus.ObjectPath(d.Handle)
	if d.Kind == device.KindEncrypted && fsPath != "" {
		infoPath = fsPath
	}
	info, err := c.blockInfo(ctx, infoPath)
	if err != nil {
		return device.Attributes{}, err
	}
	info.MountPoint = mp
	return device.Attributes{Info: info, Kind: d.Kind, State: state}, nil
}

// Mount mounts d, unlocking it with pass first when it is a locked
// container. Without a passphrase a locked container reports
// OutcomePassphraseRequired.
func (c *Client) Mount(ctx context.Context, d device.Descriptor, pass *secret.Secret) (device.Result, error) {
	state, fsPath, mp, err := c.probe(ctx, d)
	if err != nil {
		return device.Result{}, opError(device.OpMount, d, err)
	}
	tr, err := device.Plan(d.Kind, state, device.OpMount, pass.Len() > 0)
	if err != nil {
		return device.Result{}, opError(device.OpMount, d, err)
	}

	switch tr.Outcome {
	case device.OutcomePassphraseRequired:
		return device.Result{Outcome: tr.Outcome}, nil
	case device.OutcomeAlreadyMounted:
		return device.Result{Outcome: tr.Outcome, MountPoint: mp}, nil
	case device.OutcomeMounted:
		mp, err := c.mountFilesystem(ctx, fsPath)
		if err != nil {
			return device.Result{}, opError(device.OpMount, d, err)
		}
		return device.Result{Outcome: tr.Outcome, MountPoint: mp}, nil
	case device.OutcomeUnlockedAndMounted:
		ct, err := c.unlock(ctx, dbus.ObjectPath(d.Handle), pass)
		if err != nil {
			return device.Result{}, opError(device.OpMount, d, err)
		}
		mp, err := c.mountFilesystem(ctx, ct)
		if err != nil {
			return device.Result{}, opError(device.OpMount, d, err)
		}
		info, err := c.blockInfo(ctx, ct)
		if err != nil {
			return device.Result{}, opError(device.OpMount, d, err)
		}
		info.MountPoint = mp
		return device.Result{Outcome: tr.Outcome, MountPoint: mp, Info: &info}, nil
	}
	return device.Result{}, opError(device.OpMount, d, fmt.Errorf("unexpected outcome %s", tr.Outcome))
}

// Unmount unmounts d. Containers are locked afterwards.
func (c *Client) Unmount(ctx context.Context, d device.Descriptor) (device.Result, error) {
	state, fsPath, _, err := c.probe(ctx, d)
	if err != nil {
		return device.Result{}, opError(device.OpUnmount, d, err)
	}
	tr, err := device.Plan(d.Kind, state, device.OpUnmount, false)
	if err != nil {
		return device.Result{}, opError(device.OpUnmount, d, err)
	}

	path := dbus.ObjectPath(d.Handle)
	switch tr.Outcome {
	case device.OutcomeAlreadyUnmounted, device.OutcomeAlreadyLocked:
		return device.Result{Outcome: tr.Outcome}, nil
	case device.OutcomeUnmounted:
		if err := c.call(ctx, fsPath, ifaceFilesystem+".Unmount", noOptions()).Err; err != nil {
			return device.Result{}, opError(device.OpUnmount, d, err)
		}
		return device.Result{Outcome: tr.Outcome}, nil
	case device.OutcomeUnmountedAndLocked, device.OutcomeLocked:
		if tr.Outcome == device.OutcomeUnmountedAndLocked {
			if err := c.call(ctx, fsPath, ifaceFilesystem+".Unmount", noOptions()).Err; err != nil {
				return device.Result{}, opError(device.OpUnmount, d, err)
			}
		}
		if err := c.call(ctx, path, ifaceEncrypted+".Lock", noOptions()).Err; err != nil {
			return device.Result{}, opError(device.OpUnmount, d, err)
		}
		info, err := c.blockInfo(ctx, path)
		if err != nil {
			return device.Result{}, opError(device.OpUnmount, d, err)
		}
		return device.Result{Outcome: tr.Outcome, Info: &info}, nil
	}
	return device.Result{}, opError(device.OpUnmount, d, fmt.Errorf("unexpected outcome %s", tr.Outcome))
}

// Eject ejects the drive d lives on.
func (c *Client) Eject(ctx context.Context, d device.Descriptor) (device.Result, error) {
	var drive dbus.ObjectPath
	if err := c.property(ctx, dbus.ObjectPath(d.Handle), ifaceBlock, "Drive", &drive); err != nil {
		return device.Result{}, opError(device.OpEject, d, err)
	}
	if drive == rootPath || drive == "" {
		return device.Result{}, opError(device.OpEject, d, fmt.Errorf("not on an ejectable drive"))
	}
	if err := c.call(ctx, drive, ifaceDrive+".Eject", noOptions()).Err; err != nil {
		return device.Result{}, opError(device.OpEject, d, err)
	}
	return device.Result{Outcome: device.OutcomeEjected}, nil
}

func (c *Client) mountFilesystem(ctx context.Context, path dbus.ObjectPath) (string, error) {
	var mp string
	if err := c.call(ctx, path, ifaceFilesystem+".Mount", noOptions()).Store(&mp); err != nil {
		return "", err
	}
	return mp, nil
}

// unlock opens the container with pass. The passphrase travels as
// keyfile_contents so it is sent as bytes, and the copy made for the call is
// cleared once the call returns.
func (c *Client) unlock(ctx context.Context, path dbus.ObjectPath, pass *secret.Secret) (dbus.ObjectPath, error) {
	key := make([]byte, pass.Len())
	copy(key, pass.Bytes())
	defer clear(key)

	opts := map[string]dbus.Variant{"keyfile_contents": dbus.MakeVariant(key)}
	var ct dbus.ObjectPath
	if err := c.call(ctx, path, ifaceEncrypted+".Unlock", "", opts).Store(&ct); err != nil {
		return "", err
	}
	return ct, nil
}
