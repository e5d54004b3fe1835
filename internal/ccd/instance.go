package ccd

import (
	"strings"

	"golang.org/x/sys/windows/registry"
)

// InstanceIdFromMonitorDevicePath converts a monitor device interface path
// (as returned in DisplayConfigTargetDeviceName.MonitorDevicePath, e.g.
// `\\?\DISPLAY#GSM5A84#4&1d2d6c9c&0&UID4352#{e6f07b5f-...}`) into the
// corresponding PnP instance id (`DISPLAY\GSM5A84\4&1d2d6c9c&0&UID4352`).
//
// Returns the empty string if devicePath does not look like a display
// device interface path.
func InstanceIdFromMonitorDevicePath(devicePath string) string {
	trimmed := strings.TrimPrefix(devicePath, `\\?\`)
	segments := strings.Split(trimmed, "#")
	if len(segments) < 3 || !strings.EqualFold(segments[0], "DISPLAY") {
		return ""
	}
	return strings.Join(segments[:3], `\`)
}

// EdidForInstance reads the raw EDID byte blob for a monitor instance id
// from the registry, the same place Windows itself stores it:
// HKLM\SYSTEM\CurrentControlSet\Enum\<instanceId>\Device Parameters\EDID.
//
// Returns a nil slice (not an error) if no EDID is present, matching the
// driver port's "empty bytes, not a hard failure" fallback contract.
func EdidForInstance(instanceId string) ([]byte, error) {
	keyPath := `SYSTEM\CurrentControlSet\Enum\` + instanceId + `\Device Parameters`
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, keyPath, registry.QUERY_VALUE)
	if err != nil {
		return nil, nil
	}
	defer key.Close()

	data, _, err := key.GetBinaryValue("EDID")
	if err != nil {
		return nil, nil
	}
	return data, nil
}

// StableInstanceIdSlice strips the unstable fragments (the 3rd and 4th
// '&'-delimited fragments) from a PnP instance id, as described by the
// device-id derivation contract: those fragments vary with port/hub
// topology and must not influence the hashed device identity.
func StableInstanceIdSlice(instanceId string) string {
	parts := strings.Split(instanceId, "&")
	if len(parts) <= 2 {
		return instanceId
	}
	stable := make([]string, 0, len(parts))
	for i, p := range parts {
		if i == 2 || i == 3 {
			continue
		}
		stable = append(stable, p)
	}
	return strings.Join(stable, "&")
}
