package ui

import "fmt"

// Zone ID constants for bubblezone hit detection.
// These are used both in render paths (zone.Mark) and input paths (zone.Get().InBounds).
const (
	ZoneDeviceList = "zone-device-list"
	ZoneAuditPane  = "zone-audit-pane"
)

// DeviceRowZoneID returns the zone ID for a device row by its registry index.
func DeviceRowZoneID(idx int) string {
	return fmt.Sprintf("zone-device-row-%d", idx)
}
