// Package settings implements the settings-transaction engine: the
// SettingsManager that orchestrates topology, primary-device, display
// mode and HDR changes through the DisplayDriver port, with persisted
// state for idempotent re-application and layered guards for rollback
// on any failure.
package settings

import (
	"go.uber.org/zap"

	"displayswitchd/internal/audio"
	"displayswitchd/internal/device"
	"displayswitchd/internal/persistence"
	"displayswitchd/internal/types"
)

// Manager is the settings-transaction engine. It owns its
// PersistentState and holds the driver and audio ports by reference;
// callers must not invoke Apply/Revert/ResetPersistence concurrently —
// the manager does no internal synchronization, matching the
// single-threaded cooperative model its ports assume.
type Manager struct {
	driver      device.Driver
	state       *persistence.PersistentState
	audioCtx    audio.Context
	workarounds types.WinWorkarounds
	log         *zap.SugaredLogger
}

// New constructs a Manager. A nil audioCtx defaults to audio.Noop{}; a
// nil log defaults to a no-op logger.
func New(driver device.Driver, state *persistence.PersistentState, audioCtx audio.Context, workarounds types.WinWorkarounds, log *zap.SugaredLogger) *Manager {
	if audioCtx == nil {
		audioCtx = audio.Noop{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{driver: driver, state: state, audioCtx: audioCtx, workarounds: workarounds, log: log}
}

// EnumerateDevices is a thin passthrough to the driver, exposed so a CLI
// or tray front end can list devices without reaching into internal
// packages directly.
func (m *Manager) EnumerateDevices() ([]types.EnumeratedDevice, error) {
	return m.driver.Enumerate()
}

func containsDevice(devices []types.EnumeratedDevice, id types.DeviceId) bool {
	for _, d := range devices {
		if d.DeviceId == id {
			return true
		}
	}
	return false
}
