//go:build windows

package device

import (
	"fmt"

	"displayswitchd/internal/ccd"
	"displayswitchd/internal/types"
)

// CurrentHdrStates reports the HDR state of every active device in ids.
// A nil map value means the device is active but does not support
// advanced color at all.
func (d *WinDriver) CurrentHdrStates(ids types.DeviceIdSet) (types.HdrStateMap, error) {
	data, err := snapshot(true)
	if err != nil {
		return nil, fmt.Errorf("failed to query active display configuration: %w", err)
	}

	wanted := map[types.DeviceId]bool{}
	for _, id := range ids {
		wanted[id] = true
	}

	out := types.HdrStateMap{}
	for _, path := range data.PathInfoArray {
		did, _, err := pathDeviceId(path)
		if err != nil || !wanted[did] {
			continue
		}

		colorInfo, err := ccd.GetAdvancedColorInfo(path.TargetInfo.AdapterId, path.TargetInfo.Id)
		if err != nil || !colorInfo.AdvancedColorSupported() {
			out[did] = nil
			continue
		}
		state := types.HdrStateDisabled
		if colorInfo.AdvancedColorEnabled() {
			state = types.HdrStateEnabled
		}
		out[did] = &state
	}
	return out, nil
}

// SetHdrStates writes the requested HDR state to every device present
// with a non-nil value; nil-valued (unsupported) entries are silently
// ignored, per the HdrStateMap contract. On a write failure, only the
// entries actually changed so far are rolled back.
func (d *WinDriver) SetHdrStates(states types.HdrStateMap) error {
	var changed []struct {
		adapterId ccd.LUID
		targetId  uint32
		previous  types.HdrState
	}

	data, err := snapshot(true)
	if err != nil {
		return fmt.Errorf("failed to query active display configuration: %w", err)
	}

	for id, want := range states {
		if want == nil {
			continue
		}

		var adapterId ccd.LUID
		var targetId uint32
		found := false
		var previous types.HdrState
		for _, path := range data.PathInfoArray {
			did, _, err := pathDeviceId(path)
			if err != nil || did != id {
				continue
			}
			colorInfo, err := ccd.GetAdvancedColorInfo(path.TargetInfo.AdapterId, path.TargetInfo.Id)
			if err != nil {
				continue
			}
			adapterId, targetId = path.TargetInfo.AdapterId, path.TargetInfo.Id
			previous = types.HdrStateDisabled
			if colorInfo.AdvancedColorEnabled() {
				previous = types.HdrStateEnabled
			}
			found = true
			break
		}
		if !found {
			d.log.Warnw("skipping HDR write for unknown or unsupported device", "device_id", id)
			continue
		}
		if previous == *want {
			continue
		}

		if err := ccd.SetAdvancedColorState(adapterId, targetId, *want == types.HdrStateEnabled); err != nil {
			d.log.Errorw("failed to set HDR state, rolling back devices already changed this call", "device_id", id, "error", err)
			for _, c := range changed {
				_ = ccd.SetAdvancedColorState(c.adapterId, c.targetId, c.previous == types.HdrStateEnabled)
			}
			return fmt.Errorf("failed to set HDR state for %s: %w", id, err)
		}
		changed = append(changed, struct {
			adapterId ccd.LUID
			targetId  uint32
			previous  types.HdrState
		}{adapterId, targetId, previous})
	}
	return nil
}
