package settings

import (
	"time"

	"displayswitchd/internal/guard"
	"displayswitchd/internal/planning"
	"displayswitchd/internal/types"
)

// applyContext carries the state threaded through apply's stages; it
// exists only to keep prepareTopology/preparePrimaryDevice/
// prepareDisplayModes/prepareHdrStates from needing a dozen return
// values apiece.
type applyContext struct {
	newState           types.SingleDisplayConfigState
	deviceToConfigure  types.DeviceId
	additional         types.DeviceIdSet
	configuringPrimary bool
}

// Apply places the OS into the requested configuration, or leaves it
// exactly as found. The observable mutation order is strictly topology
// -> primary -> modes -> HDR; any stage's failure unwinds everything
// done so far via the stacked guards, in the reverse order.
func (m *Manager) Apply(config types.SingleDisplayConfiguration) types.ApplyResult {
	if !m.driver.IsApiAccessAvailable() {
		return types.ApplyApiTemporarilyUnavailable
	}

	topologyBefore, err := m.driver.CurrentTopology()
	if err != nil || !m.driver.IsTopologyValid(topologyBefore) {
		m.log.Errorw("current topology is invalid or unreadable", "error", err)
		return types.ApplyDevicePrepFailed
	}

	systemSettingsTouched := false
	defer func() {
		if !systemSettingsTouched {
			return
		}
		if err := planning.BlankHdrStates(m.driver, m.workarounds.HdrBlankDelayMillis, time.Sleep); err != nil {
			m.log.Warnw("HDR blank workaround failed", "error", err)
		}
	}()

	audioWasCapturedBefore := m.audioCtx.IsCaptured()
	releaseContext := false
	topologyGuard := guard.New(func() error {
		err := m.driver.SetTopology(topologyBefore)
		if err != nil && releaseContext {
			m.audioCtx.Release()
		}
		if !audioWasCapturedBefore && m.audioCtx.IsCaptured() {
			m.audioCtx.Release()
		}
		return err
	}, func(err error) {
		m.log.Errorw("failed to restore topology while rolling back a failed apply", "error", err)
	})
	defer topologyGuard.Run()

	ctx, result := m.prepareTopology(config, topologyBefore, audioWasCapturedBefore, &systemSettingsTouched, &releaseContext)
	if result != types.ApplyOk {
		return result
	}

	primaryGuard := guard.Disarmed()
	defer primaryGuard.Run()
	if result := m.preparePrimaryDevice(config, ctx, primaryGuard); result != types.ApplyOk {
		return result
	}

	modeGuard := guard.Disarmed()
	defer modeGuard.Run()
	if result := m.prepareDisplayModes(config, ctx, modeGuard); result != types.ApplyOk {
		return result
	}

	hdrGuard := guard.Disarmed()
	defer hdrGuard.Run()
	if result := m.prepareHdrStates(config, ctx, hdrGuard); result != types.ApplyOk {
		return result
	}

	if !m.state.Persist(&ctx.newState) {
		return types.ApplyPersistenceSaveFailed
	}

	if releaseContext {
		m.audioCtx.Release()
	}
	topologyGuard.Disarm()
	primaryGuard.Disarm()
	modeGuard.Disarm()
	hdrGuard.Disarm()
	return types.ApplyOk
}

// prepareTopology is stage 1: compute the desired topology from the
// request and current/cached state, switch to it if needed, and seed
// the new persisted state's Initial and Modified.Topology.
func (m *Manager) prepareTopology(config types.SingleDisplayConfiguration, topologyBefore types.ActiveTopology, audioWasCapturedBefore bool, systemSettingsTouched *bool, releaseContext *bool) (*applyContext, types.ApplyResult) {
	enumerated, err := m.driver.Enumerate()
	if err != nil || len(enumerated) == 0 {
		m.log.Errorw("failed to enumerate devices", "error", err)
		return nil, types.ApplyDevicePrepFailed
	}
	if config.DeviceId != "" && !containsDevice(enumerated, config.DeviceId) {
		m.log.Errorw("requested device is not known to the driver", "device_id", config.DeviceId)
		return nil, types.ApplyDevicePrepFailed
	}

	cached := m.state.State()
	var prevInitial *types.Initial
	if cached != nil {
		prevInitial = &cached.Initial
	}
	initial, err := planning.ComputeInitialState(m.driver, prevInitial, topologyBefore)
	if err != nil {
		m.log.Errorw("failed to compute initial state", "error", err)
		return nil, types.ApplyDevicePrepFailed
	}
	stripped, err := planning.StripInitialState(*initial, enumerated)
	if err != nil {
		m.log.Errorw("failed to strip initial state against current devices", "error", err)
		return nil, types.ApplyDevicePrepFailed
	}

	newTopology, deviceToConfigure, additional := planning.ComputeNewTopologyAndMetadata(config.DevicePrep, config.DeviceId, *stripped)
	if !newTopology.Flatten().Contains(deviceToConfigure) {
		m.log.Errorw("device to configure fell outside the computed topology", "device_id", deviceToConfigure)
		return nil, types.ApplyDevicePrepFailed
	}

	configuringPrimary := stripped.PrimaryDevices.Contains(deviceToConfigure)

	newState := types.SingleDisplayConfigState{Initial: *stripped}
	newState.Modified.Topology = topologyBefore

	if !newTopology.Equal(topologyBefore) {
		if cached != nil && len(cached.Modified.Topology) > 0 && !cached.Modified.Topology.Equal(newTopology) {
			if err := m.revertModifiedSettings(topologyBefore); err != nil {
				m.log.Errorw("failed to revert previously modified settings before switching topology", "error", err)
				return nil, types.ApplyDevicePrepFailed
			}
		}

		if !m.audioCtx.IsCaptured() {
			switchingFromInitial := topologyBefore.Equal(stripped.Topology)
			newDevices := newTopology.Flatten()
			coversEverything := true
			for _, id := range topologyBefore.Flatten() {
				if !newDevices.Contains(id) {
					coversEverything = false
					break
				}
			}
			if switchingFromInitial && !coversEverything {
				if !m.audioCtx.Capture() {
					m.log.Errorw("failed to capture audio context before deactivating devices")
					return nil, types.ApplyDevicePrepFailed
				}
			}
		}

		*systemSettingsTouched = true
		if err := m.driver.SetTopology(newTopology); err != nil {
			m.log.Errorw("failed to set topology", "error", err)
			return nil, types.ApplyDevicePrepFailed
		}
		*releaseContext = newTopology.Equal(stripped.Topology) && audioWasCapturedBefore
		newState.Modified.Topology = newTopology
	}

	if after := m.state.State(); after != nil {
		newState.Modified.OriginalPrimaryDevice = after.Modified.OriginalPrimaryDevice
		newState.Modified.OriginalModes = after.Modified.OriginalModes
		newState.Modified.OriginalHdrStates = after.Modified.OriginalHdrStates
	}

	return &applyContext{
		newState:           newState,
		deviceToConfigure:  deviceToConfigure,
		additional:         additional,
		configuringPrimary: configuringPrimary,
	}, types.ApplyOk
}

// preparePrimaryDevice is stage 2. The original primary device recorded
// into Modified is cached-or-current: once a prior apply has recorded
// the true pristine primary, later re-applies must keep recording that
// same device rather than the already-overridden current one, or a
// revert would only unwind the most recent apply instead of all of
// them.
func (m *Manager) preparePrimaryDevice(config types.SingleDisplayConfiguration, ctx *applyContext, primaryGuard *guard.Guard) types.ApplyResult {
	cachedOriginal := ctx.newState.Modified.OriginalPrimaryDevice
	needsCurrent := config.DevicePrep == types.DevicePrepEnsurePrimary || cachedOriginal != ""
	if !needsCurrent {
		return types.ApplyOk
	}

	currentPrimary, err := planning.GetPrimaryDevice(m.driver, ctx.newState.Modified.Topology)
	if err != nil || currentPrimary == "" {
		m.log.Errorw("failed to determine current primary device", "error", err)
		return types.ApplyPrimaryDevicePrepFailed
	}

	if config.DevicePrep == types.DevicePrepEnsurePrimary {
		original := currentPrimary
		if cachedOriginal != "" {
			original = cachedOriginal
		}
		if currentPrimary == ctx.deviceToConfigure {
			ctx.newState.Modified.OriginalPrimaryDevice = original
			return types.ApplyOk
		}
		primaryGuard.Arm(func() error { return m.driver.SetAsPrimary(currentPrimary) })
		if err := m.driver.SetAsPrimary(ctx.deviceToConfigure); err != nil {
			m.log.Errorw("failed to set primary device", "error", err)
			return types.ApplyPrimaryDevicePrepFailed
		}
		ctx.newState.Modified.OriginalPrimaryDevice = original
		return types.ApplyOk
	}

	// Restore path: re-apply whatever primary device was previously
	// recorded, if it differs from the current one.
	if cachedOriginal == "" || cachedOriginal == currentPrimary {
		return types.ApplyOk
	}
	primaryGuard.Arm(func() error { return m.driver.SetAsPrimary(currentPrimary) })
	if err := m.driver.SetAsPrimary(cachedOriginal); err != nil {
		m.log.Errorw("failed to restore primary device", "error", err)
		return types.ApplyPrimaryDevicePrepFailed
	}
	ctx.newState.Modified.OriginalPrimaryDevice = ""
	return types.ApplyOk
}

// prepareDisplayModes is stage 3. A post-write re-read guards against
// drivers that silently coalesce identical-looking mode changes: if the
// re-read looks unchanged, arming a guard with the pre-change modes
// would be a false rollback trigger, so the guard is only armed when the
// re-read shows an actual difference.
//
// The baseline fed into ComputeNewDisplayModes, and the value finally
// recorded into Modified.OriginalModes, is cached-or-current: a device
// already tracked in a prior apply's Modified.OriginalModes keeps its
// pristine entry; only devices never touched before fall back to what
// the driver reports right now. Overwriting with plain current would
// make a second apply forget the first apply's true baseline, breaking
// apply-apply-revert round-trips.
func (m *Manager) prepareDisplayModes(config types.SingleDisplayConfiguration, ctx *applyContext, modeGuard *guard.Guard) types.ApplyResult {
	if config.Resolution == nil && config.RefreshRateRational() == nil {
		return types.ApplyOk
	}

	ids := append(types.DeviceIdSet{ctx.deviceToConfigure}, ctx.additional...)
	current, err := m.driver.CurrentDisplayModes(ids)
	if err != nil {
		m.log.Errorw("failed to read current display modes", "error", err)
		return types.ApplyDisplayModePrepFailed
	}
	originals := mergeOriginalModes(ctx.newState.Modified.OriginalModes, current)

	newModes := planning.ComputeNewDisplayModes(config.Resolution, config.RefreshRateRational(), ctx.configuringPrimary, ctx.deviceToConfigure, ctx.additional, originals)
	if modesEqual(newModes, current) {
		return types.ApplyOk
	}

	if err := m.driver.SetDisplayModes(newModes); err != nil {
		m.log.Errorw("failed to set display modes", "error", err)
		return types.ApplyDisplayModePrepFailed
	}

	readBack, err := m.driver.CurrentDisplayModes(ids)
	if err == nil && !modesEqual(readBack, current) {
		modeGuard.Arm(func() error { return m.driver.SetDisplayModes(current) })
	}

	ctx.newState.Modified.OriginalModes = originals
	return types.ApplyOk
}

// prepareHdrStates is stage 4, identical in shape to prepareDisplayModes
// but without the coalesce re-read: HDR writes are deterministic. The
// originals baseline is cached-or-current for the same reason as modes.
func (m *Manager) prepareHdrStates(config types.SingleDisplayConfiguration, ctx *applyContext, hdrGuard *guard.Guard) types.ApplyResult {
	if config.HdrState == nil {
		return types.ApplyOk
	}

	ids := append(types.DeviceIdSet{ctx.deviceToConfigure}, ctx.additional...)
	current, err := m.driver.CurrentHdrStates(ids)
	if err != nil {
		m.log.Errorw("failed to read current HDR states", "error", err)
		return types.ApplyHdrStatePrepFailed
	}
	originals := mergeOriginalHdrStates(ctx.newState.Modified.OriginalHdrStates, current)

	newStates := planning.ComputeNewHdrStates(config.HdrState, ctx.configuringPrimary, ctx.deviceToConfigure, ctx.additional, originals)
	if hdrStatesEqual(newStates, current) {
		return types.ApplyOk
	}

	hdrGuard.Arm(func() error { return m.driver.SetHdrStates(current) })
	if err := m.driver.SetHdrStates(newStates); err != nil {
		m.log.Errorw("failed to set HDR states", "error", err)
		return types.ApplyHdrStatePrepFailed
	}

	ctx.newState.Modified.OriginalHdrStates = originals
	return types.ApplyOk
}

// mergeOriginalModes returns, per device id present in current, the
// cached original if one is already recorded, else the current value.
func mergeOriginalModes(cached, current types.DeviceDisplayModeMap) types.DeviceDisplayModeMap {
	if len(cached) == 0 {
		return current
	}
	merged := make(types.DeviceDisplayModeMap, len(current))
	for id, mode := range current {
		if c, ok := cached[id]; ok {
			merged[id] = c
		} else {
			merged[id] = mode
		}
	}
	return merged
}

// mergeOriginalHdrStates is mergeOriginalModes for HDR state maps.
func mergeOriginalHdrStates(cached, current types.HdrStateMap) types.HdrStateMap {
	if len(cached) == 0 {
		return current
	}
	merged := make(types.HdrStateMap, len(current))
	for id, state := range current {
		if c, ok := cached[id]; ok {
			merged[id] = c
		} else {
			merged[id] = state
		}
	}
	return merged
}

func modesEqual(a, b types.DeviceDisplayModeMap) bool {
	if len(a) != len(b) {
		return false
	}
	for id, mode := range a {
		if b[id] != mode {
			return false
		}
	}
	return true
}

func hdrStatesEqual(a, b types.HdrStateMap) bool {
	if len(a) != len(b) {
		return false
	}
	for id, state := range a {
		other, ok := b[id]
		if !ok || (state == nil) != (other == nil) {
			return false
		}
		if state != nil && *state != *other {
			return false
		}
	}
	return true
}
