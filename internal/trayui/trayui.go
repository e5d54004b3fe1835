// Package trayui adapts the settings-transaction engine to a Windows
// system tray icon: one submenu item per active display, a Revert,
// a Reset Persistence, and a Turn Off All Monitors action.
package trayui

import (
	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"displayswitchd/internal/power"
	"displayswitchd/internal/settings"
	"displayswitchd/internal/types"
)

const maxDeviceItems = 20

// Tray owns the systray menu items and the Manager they drive.
type Tray struct {
	manager *settings.Manager
	log     *zap.SugaredLogger

	deviceItems []*systray.MenuItem
	mRevert     *systray.MenuItem
	mReset      *systray.MenuItem
	mTurnOff    *systray.MenuItem
	mQuit       *systray.MenuItem
}

// New constructs a Tray over manager. A nil log defaults to a no-op
// logger.
func New(manager *settings.Manager, log *zap.SugaredLogger) *Tray {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Tray{manager: manager, log: log}
}

// Run starts the system tray and blocks until Quit is selected or the
// process exits; call it from the main goroutine, as systray requires.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("displayswitchd")
	systray.SetTooltip("Display configuration switcher")

	mDevices := systray.AddMenuItem("Make Primary", "Switch primary display")
	t.deviceItems = make([]*systray.MenuItem, maxDeviceItems)
	for i := 0; i < maxDeviceItems; i++ {
		t.deviceItems[i] = mDevices.AddSubMenuItem("", "")
		t.deviceItems[i].Hide()
	}
	t.refreshDevices()

	systray.AddSeparator()
	t.mRevert = systray.AddMenuItem("Revert", "Restore the configuration from before the first apply")
	t.mReset = systray.AddMenuItem("Reset Persistence", "Force-clear saved state")
	t.mTurnOff = systray.AddMenuItem("Turn Off All Monitors", "Turn off all monitors")

	systray.AddSeparator()
	t.mQuit = systray.AddMenuItem("Exit", "Exit displayswitchd")

	go t.handleClicks()
}

func (t *Tray) refreshDevices() {
	devices, err := t.manager.EnumerateDevices()
	if err != nil {
		t.log.Errorw("failed to enumerate devices for tray menu", "error", err)
		return
	}
	for _, item := range t.deviceItems {
		item.Hide()
	}
	i := 0
	for _, dev := range devices {
		if dev.Info == nil || i >= len(t.deviceItems) {
			continue
		}
		name := dev.FriendlyName
		if name == "" {
			name = string(dev.DisplayName)
		}
		t.deviceItems[i].SetTitle(name)
		t.deviceItems[i].Show()
		i++
	}
}

func (t *Tray) handleClicks() {
	deviceClicked := make(chan int)
	for i, item := range t.deviceItems {
		go func(idx int, item *systray.MenuItem) {
			for range item.ClickedCh {
				deviceClicked <- idx
			}
		}(i, item)
	}

	for {
		select {
		case idx := <-deviceClicked:
			t.applyPrimary(idx)
		case <-t.mRevert.ClickedCh:
			if result := t.manager.Revert(); result != types.RevertOk {
				t.log.Errorw("revert failed", "result", result.String())
			}
			t.refreshDevices()
		case <-t.mReset.ClickedCh:
			if result := t.manager.ResetPersistence(); result != types.RevertOk {
				t.log.Errorw("reset persistence reported a non-ok result", "result", result.String())
			}
			t.refreshDevices()
		case <-t.mTurnOff.ClickedCh:
			if err := power.TurnOffMonitors(); err != nil {
				t.log.Errorw("failed to turn off monitors", "error", err)
			}
		case <-t.mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (t *Tray) applyPrimary(index int) {
	devices, err := t.manager.EnumerateDevices()
	if err != nil {
		t.log.Errorw("failed to enumerate devices for tray click", "error", err)
		return
	}
	active := 0
	for _, dev := range devices {
		if dev.Info == nil {
			continue
		}
		if active == index {
			result := t.manager.Apply(types.SingleDisplayConfiguration{
				DeviceId:   dev.DeviceId,
				DevicePrep: types.DevicePrepEnsurePrimary,
			})
			if result != types.ApplyOk {
				t.log.Errorw("apply failed from tray", "device_id", dev.DeviceId, "result", result.String())
			}
			return
		}
		active++
	}
}

func (t *Tray) onExit() {}
