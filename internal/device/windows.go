//go:build windows

package device

import (
	"fmt"

	"go.uber.org/zap"

	"displayswitchd/internal/ccd"
	"displayswitchd/internal/types"
)

// WinDriver implements Driver on top of the Windows CCD API bindings in
// internal/ccd. It holds no mutable state of its own: every query
// re-reads the live OS configuration, the same way the original
// implementation treats the CCD API as the single source of truth.
type WinDriver struct {
	log *zap.SugaredLogger
}

// NewWinDriver constructs a driver that logs through log. A nil logger
// is replaced with a no-op one.
func NewWinDriver(log *zap.SugaredLogger) *WinDriver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &WinDriver{log: log}
}

// IsApiAccessAvailable probes the CCD API with a read-only query. It is
// the cheapest call that reliably fails when the display subsystem is
// not ready yet (e.g. immediately after waking from sleep).
func (d *WinDriver) IsApiAccessAvailable() bool {
	_, _, err := ccd.GetDisplayConfigBufferSizes(ccd.QueryDisplayFlagsAllPaths)
	return err == nil
}

// snapshot queries the current path/mode arrays, optionally restricted
// to active paths only.
func snapshot(activeOnly bool) (*ccd.DisplaySettings, error) {
	return ccd.GetCurrentDisplaySettings(activeOnly)
}

// pathDeviceId resolves the stable device id and monitor metadata for a
// path's target.
func pathDeviceId(path ccd.DisplayConfigPathInfo) (types.DeviceId, ccd.MonitorInfo, error) {
	info, err := ccd.GetMonitorInfo(path.TargetInfo.AdapterId, path.TargetInfo.Id)
	if err != nil {
		return "", ccd.MonitorInfo{}, fmt.Errorf("failed to query monitor info: %w", err)
	}
	return deriveDeviceId(info.MonitorDevicePath), info, nil
}

func sourceModeForPath(path ccd.DisplayConfigPathInfo, modes []ccd.DisplayConfigModeInfo) *ccd.DisplayConfigSourceMode {
	idx := path.SourceInfo.ModeInfoIdx
	if idx == ccd.DisplayConfigPathModeIdxInvalid || int(idx) >= len(modes) {
		return nil
	}
	m := &modes[idx]
	if m.InfoType != ccd.ModeInfoTypeSource {
		return nil
	}
	return m.GetSourceMode()
}

func targetModeForPath(path ccd.DisplayConfigPathInfo, modes []ccd.DisplayConfigModeInfo) *ccd.DisplayConfigTargetMode {
	idx := path.TargetInfo.ModeInfoIdx
	if idx == ccd.DisplayConfigPathModeIdxInvalid || int(idx) >= len(modes) {
		return nil
	}
	m := &modes[idx]
	if m.InfoType != ccd.ModeInfoTypeTarget {
		return nil
	}
	return m.GetTargetMode()
}

// DisplayName returns the OS-assigned logical display name for id, or ""
// if the device is not currently active.
func (d *WinDriver) DisplayName(id types.DeviceId) types.DisplayName {
	data, err := snapshot(true)
	if err != nil {
		d.log.Warnw("failed to query active paths for display name lookup", "error", err)
		return ""
	}
	for i, path := range data.PathInfoArray {
		did, _, err := pathDeviceId(path)
		if err != nil || did != id {
			continue
		}
		_ = i
		return types.DisplayName(fmt.Sprintf(`\\.\DISPLAY%d`, path.SourceInfo.Id+1))
	}
	return ""
}

// Enumerate lists every display the driver currently knows about.
func (d *WinDriver) Enumerate() ([]types.EnumeratedDevice, error) {
	data, err := snapshot(false)
	if err != nil {
		return nil, fmt.Errorf("failed to query display configuration: %w", err)
	}

	out := make([]types.EnumeratedDevice, 0, len(data.PathInfoArray))
	for _, path := range data.PathInfoArray {
		did, monitorInfo, err := pathDeviceId(path)
		if err != nil {
			d.log.Debugw("skipping path with unresolvable device id", "error", err)
			continue
		}

		entry := types.EnumeratedDevice{
			DeviceId:     did,
			FriendlyName: monitorInfo.MonitorFriendlyDevice,
		}

		active := path.Flags&ccd.DisplayConfigPathActive != 0
		if active {
			entry.DisplayName = d.DisplayName(did)
			entry.Info = d.buildDeviceInfo(path, data.ModeInfoArray)
		}

		out = append(out, entry)
	}
	return out, nil
}

func (d *WinDriver) buildDeviceInfo(path ccd.DisplayConfigPathInfo, modes []ccd.DisplayConfigModeInfo) *types.DeviceInfo {
	sourceMode := sourceModeForPath(path, modes)
	if sourceMode == nil {
		return nil
	}
	targetMode := targetModeForPath(path, modes)

	info := &types.DeviceInfo{
		Resolution: types.Resolution{Width: sourceMode.Width, Height: sourceMode.Height},
		Primary:    sourceMode.Position.X == 0 && sourceMode.Position.Y == 0,
		Origin:     types.Point{X: sourceMode.Position.X, Y: sourceMode.Position.Y},
	}
	if targetMode != nil {
		info.RefreshRate = types.Rational{
			Numerator:   uint32(targetMode.TargetVideoSignalInfo.VSyncFreq.Numerator),
			Denominator: targetMode.TargetVideoSignalInfo.VSyncFreq.Denominator,
		}
	} else {
		info.RefreshRate = types.Rational{Numerator: path.TargetInfo.RefreshRate.Numerator, Denominator: path.TargetInfo.RefreshRate.Denominator}
	}

	colorInfo, err := ccd.GetAdvancedColorInfo(path.TargetInfo.AdapterId, path.TargetInfo.Id)
	if err == nil && colorInfo.AdvancedColorSupported() {
		state := types.HdrStateDisabled
		if colorInfo.AdvancedColorEnabled() {
			state = types.HdrStateEnabled
		}
		info.HdrState = &state
	}

	return info
}
