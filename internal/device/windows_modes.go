//go:build windows

package device

import (
	"errors"
	"fmt"

	"displayswitchd/internal/ccd"
	"displayswitchd/internal/planning"
	"displayswitchd/internal/types"
)

// CurrentDisplayModes returns the current mode of every active device in
// ids. Devices not found or inactive are simply absent from the result.
func (d *WinDriver) CurrentDisplayModes(ids types.DeviceIdSet) (types.DeviceDisplayModeMap, error) {
	data, err := snapshot(true)
	if err != nil {
		return nil, fmt.Errorf("failed to query active display configuration: %w", err)
	}

	wanted := map[types.DeviceId]bool{}
	for _, id := range ids {
		wanted[id] = true
	}

	out := types.DeviceDisplayModeMap{}
	for _, path := range data.PathInfoArray {
		did, _, err := pathDeviceId(path)
		if err != nil || !wanted[did] {
			continue
		}
		sourceMode := sourceModeForPath(path, data.ModeInfoArray)
		if sourceMode == nil {
			continue
		}
		mode := types.DisplayMode{Resolution: types.Resolution{Width: sourceMode.Width, Height: sourceMode.Height}}
		if targetMode := targetModeForPath(path, data.ModeInfoArray); targetMode != nil {
			mode.RefreshRate = types.Rational{
				Numerator:   targetMode.TargetVideoSignalInfo.VSyncFreq.Numerator,
				Denominator: targetMode.TargetVideoSignalInfo.VSyncFreq.Denominator,
			}
		}
		out[did] = mode
	}
	return out, nil
}

// SetDisplayModes applies requested modes with a relaxed-then-strict
// retry: the first attempt allows Windows to adjust anything it needs
// to (ALLOW_CHANGES); if the post-write read-back does not fuzzy-match
// what was requested, a second, strict attempt is made; if that still
// does not converge, the original configuration is restored and an
// error is returned.
func (d *WinDriver) SetDisplayModes(requested types.DeviceDisplayModeMap) error {
	if len(requested) == 0 {
		return nil
	}

	original, err := snapshot(false)
	if err != nil {
		return fmt.Errorf("failed to snapshot display configuration before mode change: %w", err)
	}

	attempt := func(allowChanges bool) error {
		modes := cloneModes(original.ModeInfoArray)
		if err := mutateModesFor(original.PathInfoArray, modes, requested); err != nil {
			return err
		}
		flags := ccd.SdcFlagsApply | ccd.SdcFlagsUseSuppliedDisplayConfig | ccd.SdcFlagsVirtualModeAware | ccd.SdcFlagsSaveToDatabase
		if allowChanges {
			flags |= ccd.SdcFlagsAllowChanges
		}
		return ccd.SetDisplayConfig(original.PathInfoArray, modes, flags)
	}

	ids := make(types.DeviceIdSet, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}

	if err := attempt(true); err == nil && d.modesConverged(ids, requested) {
		return nil
	} else if err != nil {
		d.log.Warnw("relaxed display mode change failed, retrying strictly", "error", err)
	} else {
		d.log.Warnw("relaxed display mode change did not converge, retrying strictly")
	}

	if err := attempt(false); err == nil && d.modesConverged(ids, requested) {
		return nil
	}

	d.log.Errorw("failed to converge to requested display modes, restoring original configuration")
	restoreFlags := ccd.SdcFlagsApply | ccd.SdcFlagsUseSuppliedDisplayConfig | ccd.SdcFlagsSaveToDatabase
	_ = ccd.SetDisplayConfig(original.PathInfoArray, original.ModeInfoArray, restoreFlags)
	return errors.New("failed to converge to requested display modes")
}

func (d *WinDriver) modesConverged(ids types.DeviceIdSet, requested types.DeviceDisplayModeMap) bool {
	current, err := d.CurrentDisplayModes(ids)
	if err != nil {
		return false
	}
	for id, want := range requested {
		got, ok := current[id]
		if !ok || !planning.FuzzyModeEqual(want, got) {
			return false
		}
	}
	return true
}

func cloneModes(modes []ccd.DisplayConfigModeInfo) []ccd.DisplayConfigModeInfo {
	out := make([]ccd.DisplayConfigModeInfo, len(modes))
	copy(out, modes)
	return out
}

func mutateModesFor(paths []ccd.DisplayConfigPathInfo, modes []ccd.DisplayConfigModeInfo, requested types.DeviceDisplayModeMap) error {
	for _, path := range paths {
		did, _, err := pathDeviceId(path)
		if err != nil {
			continue
		}
		mode, ok := requested[did]
		if !ok {
			continue
		}

		sIdx := path.SourceInfo.ModeInfoIdx
		if sIdx == ccd.DisplayConfigPathModeIdxInvalid || int(sIdx) >= len(modes) {
			return fmt.Errorf("device %s has no source mode to modify", did)
		}
		sourceMode := modes[sIdx].GetSourceMode()
		sm := *sourceMode
		sm.Width = mode.Resolution.Width
		sm.Height = mode.Resolution.Height
		modes[sIdx].SetSourceMode(&sm)

		tIdx := path.TargetInfo.ModeInfoIdx
		if tIdx != ccd.DisplayConfigPathModeIdxInvalid && int(tIdx) < len(modes) {
			targetMode := modes[tIdx].GetTargetMode()
			tm := *targetMode
			tm.TargetVideoSignalInfo.VSyncFreq = ccd.DisplayConfigRational{Numerator: mode.RefreshRate.Numerator, Denominator: mode.RefreshRate.Denominator}
			modes[tIdx].SetTargetMode(&tm)
		}
	}
	return nil
}
