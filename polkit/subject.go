package polkit

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

// subject is a polkit subject, D-Bus signature (sa{sv}).
type subject struct {
	Kind    string
	Details map[string]dbus.Variant
}

// identity is a polkit identity, D-Bus signature (sa{sv}).
type identity struct {
	Kind    string
	Details map[string]dbus.Variant
}

// processSubject identifies this process to the authority.
func processSubject() (subject, error) {
	stat, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return subject{}, fmt.Errorf("read process start time: %w", err)
	}
	start, err := parseStartTime(string(stat))
	if err != nil {
		return subject{}, err
	}
	return subject{
		Kind: "unix-process",
		Details: map[string]dbus.Variant{
			"pid":        dbus.MakeVariant(uint32(os.Getpid())),
			"start-time": dbus.MakeVariant(start),
		},
	}, nil
}

// parseStartTime extracts field 22 of /proc/<pid>/stat. The command name in
// field 2 may contain spaces, so fields are counted from its closing paren.
func parseStartTime(stat string) (uint64, error) {
	i := strings.LastIndexByte(stat, ')')
	if i < 0 {
		return 0, fmt.Errorf("malformed stat line")
	}
	fields := strings.Fields(stat[i+1:])
	// fields[0] is field 3 (state)
	const idx = 22 - 3
	if len(fields) <= idx {
		return 0, fmt.Errorf("stat line has %d fields after comm", len(fields))
	}
	v, err := strconv.ParseUint(fields[idx], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse start time: %w", err)
	}
	return v, nil
}

// unixUsers returns the uids of the unix-user identities, in order.
func unixUsers(ids []identity) []uint32 {
	var uids []uint32
	for _, id := range ids {
		if id.Kind != "unix-user" {
			continue
		}
		v, ok := id.Details["uid"]
		if !ok {
			continue
		}
		var uid uint32
		if err := v.Store(&uid); err != nil {
			continue
		}
		uids = append(uids, uid)
	}
	return uids
}
