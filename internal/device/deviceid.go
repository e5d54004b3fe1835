package device

import (
	"github.com/google/uuid"

	"displayswitchd/internal/ccd"
	"displayswitchd/internal/types"
)

// deriveDeviceId computes the stable device id for a monitor: a
// name-based (SHA-1, version 5) UUID over EDID bytes concatenated with
// the stable slice of the monitor's Windows instance id. If no EDID
// could be read, it falls back to hashing the raw monitor device path
// alone, so a device id is still produced (just one that won't survive
// an EDID becoming readable later).
func deriveDeviceId(monitorDevicePath string) types.DeviceId {
	instanceId := ccd.InstanceIdFromMonitorDevicePath(monitorDevicePath)

	var edid []byte
	if instanceId != "" {
		edid, _ = ccd.EdidForInstance(instanceId)
	}

	if len(edid) > 0 && instanceId != "" {
		stable := ccd.StableInstanceIdSlice(instanceId)
		data := make([]byte, 0, len(edid)+len(stable))
		data = append(data, edid...)
		data = append(data, []byte(stable)...)
		return formatDeviceId(data)
	}

	return formatDeviceId([]byte(monitorDevicePath))
}

func formatDeviceId(data []byte) types.DeviceId {
	id := uuid.NewSHA1(uuid.Nil, data)
	return types.DeviceId("{" + id.String() + "}")
}
