//go:build windows

package device

import (
	"errors"
	"fmt"

	"displayswitchd/internal/ccd"
	"displayswitchd/internal/types"
)

// IsPrimary reports whether id's source mode sits at origin (0,0).
func (d *WinDriver) IsPrimary(id types.DeviceId) (bool, error) {
	data, err := snapshot(true)
	if err != nil {
		return false, fmt.Errorf("failed to query active display configuration: %w", err)
	}
	for _, path := range data.PathInfoArray {
		did, _, err := pathDeviceId(path)
		if err != nil || did != id {
			continue
		}
		sourceMode := sourceModeForPath(path, data.ModeInfoArray)
		if sourceMode == nil {
			return false, fmt.Errorf("device %s has no source mode", id)
		}
		return sourceMode.Position.X == 0 && sourceMode.Position.Y == 0, nil
	}
	return false, fmt.Errorf("device %s not found among active paths", id)
}

// SetAsPrimary shifts the origin of every active source mode so that
// id's origin becomes (0,0); source mode indices shared by a duplicate
// group are only shifted once.
func (d *WinDriver) SetAsPrimary(id types.DeviceId) error {
	data, err := snapshot(true)
	if err != nil {
		return fmt.Errorf("failed to query active display configuration: %w", err)
	}

	var origin *ccd.PointL
	for _, path := range data.PathInfoArray {
		did, _, err := pathDeviceId(path)
		if err != nil || did != id {
			continue
		}
		sourceMode := sourceModeForPath(path, data.ModeInfoArray)
		if sourceMode == nil {
			return fmt.Errorf("device %s has no source mode", id)
		}
		pos := sourceMode.Position
		origin = &pos
		break
	}
	if origin == nil {
		return fmt.Errorf("device %s not found among active paths", id)
	}
	if origin.X == 0 && origin.Y == 0 {
		return nil
	}

	shifted := map[uint32]bool{}
	for _, path := range data.PathInfoArray {
		idx := path.SourceInfo.ModeInfoIdx
		if idx == ccd.DisplayConfigPathModeIdxInvalid || int(idx) >= len(data.ModeInfoArray) {
			return errors.New("active path has no source mode")
		}
		if shifted[idx] {
			// Happens for duplicate group members sharing a source; skip.
			continue
		}

		sourceMode := data.ModeInfoArray[idx].GetSourceMode()
		sm := *sourceMode
		sm.Position.X -= origin.X
		sm.Position.Y -= origin.Y
		data.ModeInfoArray[idx].SetSourceMode(&sm)
		shifted[idx] = true
	}

	flags := ccd.SdcFlagsApply | ccd.SdcFlagsUseSuppliedDisplayConfig | ccd.SdcFlagsSaveToDatabase | ccd.SdcFlagsVirtualModeAware
	if err := ccd.SetDisplayConfig(data.PathInfoArray, data.ModeInfoArray, flags); err != nil {
		return fmt.Errorf("failed to set primary mode for %s: %w", id, err)
	}
	return nil
}
