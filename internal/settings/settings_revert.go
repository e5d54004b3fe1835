package settings

import (
	"errors"
	"time"

	"displayswitchd/internal/guard"
	"displayswitchd/internal/planning"
	"displayswitchd/internal/types"
)

// Revert undoes the changes recorded in the persisted state and clears
// it, restoring the device topology recorded as Initial. Because each
// Apply keeps the originals recorded by earlier ones, this undoes every
// Apply since the state was first persisted, not only the most recent.
// If nothing is persisted, it is a no-op success.
func (m *Manager) Revert() types.RevertResult {
	if !m.driver.IsApiAccessAvailable() {
		return types.RevertApiTemporarilyUnavailable
	}

	cached := m.state.State()
	if cached == nil {
		return types.RevertOk
	}

	currentTopology, err := m.driver.CurrentTopology()
	if err != nil || !m.driver.IsTopologyValid(currentTopology) {
		m.log.Errorw("current topology is invalid or unreadable during revert", "error", err)
		return types.RevertTopologyIsInvalid
	}

	systemSettingsTouched := cached.Modified.HasModifications() || !currentTopology.Equal(cached.Initial.Topology)
	defer func() {
		if !systemSettingsTouched {
			return
		}
		if err := planning.BlankHdrStates(m.driver, m.workarounds.HdrBlankDelayMillis, time.Sleep); err != nil {
			m.log.Warnw("HDR blank workaround failed during revert", "error", err)
		}
	}()

	if result := m.revertModifiedSettingsResult(cached, currentTopology); result != types.RevertOk {
		return result
	}

	finalTopology, err := m.driver.CurrentTopology()
	if err != nil {
		m.log.Errorw("failed to re-read topology before restoring initial", "error", err)
		finalTopology = currentTopology
	}
	if !finalTopology.Equal(cached.Initial.Topology) {
		if err := m.driver.SetTopology(cached.Initial.Topology); err != nil {
			m.log.Errorw("failed to restore initial topology", "error", err)
			recovered, recErr := planning.CreateFullExtendedTopology(m.driver)
			if recErr != nil {
				m.log.Errorw("failed to build recovery topology", "error", recErr)
				return types.RevertSwitchingTopologyFailed
			}
			if err := m.driver.SetTopology(recovered); err != nil {
				m.log.Errorw("failed to apply recovery topology", "error", err)
				return types.RevertSwitchingTopologyFailed
			}
		}
	}

	if wasCaptured := m.audioCtx.IsCaptured(); wasCaptured {
		m.audioCtx.Release()
	}

	if !m.state.Persist(nil) {
		return types.RevertPersistenceSaveFailed
	}
	return types.RevertOk
}

// ResetPersistence forces the persisted state back to empty regardless
// of whether the device side could be fully reverted: it first attempts
// a normal Revert, and if that fails, force-clears the persisted state
// and releases any held audio context anyway so a corrupt or stale
// snapshot never wedges future Apply calls.
func (m *Manager) ResetPersistence() types.RevertResult {
	result := m.Revert()
	if result == types.RevertOk {
		return types.RevertOk
	}

	m.log.Warnw("revert failed during reset, force-clearing persisted state", "revert_result", result.String())
	if m.audioCtx.IsCaptured() {
		m.audioCtx.Release()
	}
	if !m.state.Persist(nil) {
		return types.RevertPersistenceSaveFailed
	}
	return result
}

// revertModifiedSettings undoes the HDR/mode/primary-device changes
// recorded in cached.Modified without touching the Initial topology,
// then persists Modified.TopologyOnly() so a subsequent apply doesn't
// see the now-undone changes as still in effect. topologyBefore is the
// topology Apply found before any switch; the primary device is only
// restored if it is part of that topology. Mirrors revertModifiedSettingsResult's steps —
// switch to the topology the modifications were recorded under first,
// since HDR/mode state is only meaningful read under that topology —
// but reports a plain error instead of a RevertResult.
func (m *Manager) revertModifiedSettings(topologyBefore types.ActiveTopology) error {
	cached := m.state.State()
	if cached == nil || !cached.Modified.HasModifications() {
		return nil
	}

	currentTopology, err := m.driver.CurrentTopology()
	if err != nil {
		return err
	}
	targetTopology := cached.Modified.Topology
	if len(targetTopology) == 0 {
		targetTopology = currentTopology
	}

	topologyGuard := guard.Disarmed()
	defer topologyGuard.Run()
	if !currentTopology.Equal(targetTopology) {
		topologyGuard.Arm(func() error { return m.driver.SetTopology(currentTopology) })
		if err := m.driver.SetTopology(targetTopology); err != nil {
			return err
		}
	}

	hdrGuard := guard.Disarmed()
	defer hdrGuard.Run()
	if len(cached.Modified.OriginalHdrStates) > 0 {
		currentHdr, err := m.driver.CurrentHdrStates(hdrStateIds(cached.Modified.OriginalHdrStates))
		if err != nil {
			return err
		}
		if !hdrStatesEqual(currentHdr, cached.Modified.OriginalHdrStates) {
			hdrGuard.Arm(func() error { return m.driver.SetHdrStates(currentHdr) })
			if err := m.driver.SetHdrStates(cached.Modified.OriginalHdrStates); err != nil {
				return err
			}
		}
	}

	modeGuard := guard.Disarmed()
	defer modeGuard.Run()
	if len(cached.Modified.OriginalModes) > 0 {
		currentModes, err := m.driver.CurrentDisplayModes(displayModeIds(cached.Modified.OriginalModes))
		if err != nil {
			return err
		}
		if !modesEqual(currentModes, cached.Modified.OriginalModes) {
			modeGuard.Arm(func() error { return m.driver.SetDisplayModes(currentModes) })
			if err := m.driver.SetDisplayModes(cached.Modified.OriginalModes); err != nil {
				return err
			}
		}
	}

	primaryGuard := guard.Disarmed()
	defer primaryGuard.Run()
	if cached.Modified.OriginalPrimaryDevice != "" && topologyBefore.Flatten().Contains(cached.Modified.OriginalPrimaryDevice) {
		currentPrimary, err := planning.GetPrimaryDevice(m.driver, targetTopology)
		if err != nil {
			return err
		}
		if currentPrimary != cached.Modified.OriginalPrimaryDevice {
			primaryGuard.Arm(func() error { return m.driver.SetAsPrimary(currentPrimary) })
			if err := m.driver.SetAsPrimary(cached.Modified.OriginalPrimaryDevice); err != nil {
				return err
			}
		}
	}

	reduced := *cached
	reduced.Modified = cached.Modified.TopologyOnly()
	if !m.state.Persist(&reduced) {
		return errors.New("failed to persist state after reverting modified settings")
	}

	topologyGuard.Disarm()
	hdrGuard.Disarm()
	modeGuard.Disarm()
	primaryGuard.Disarm()
	return nil
}

// revertModifiedSettingsResult is revertModifiedSettings adapted to
// Revert's result vocabulary: each undo step maps to its own distinct
// failure code so a caller can tell which stage left the system
// half-reverted. It first switches to cached.Modified.Topology (the
// topology the modifications were actually recorded under) so the
// HDR/mode/primary reads that follow observe the right devices, then
// only restores a dimension if the live value actually differs from
// the recorded original, arming a guard per stage so a later failure
// unwinds the stages already completed. Once every stage succeeds it
// persists cached.Modified.TopologyOnly() as an intermediate
// checkpoint, so a crash between here and Revert's final topology
// restore leaves the persisted state consistent with what the device
// actually reflects.
func (m *Manager) revertModifiedSettingsResult(cached *types.SingleDisplayConfigState, currentTopology types.ActiveTopology) types.RevertResult {
	if !cached.Modified.HasModifications() {
		return types.RevertOk
	}

	targetTopology := cached.Modified.Topology
	if len(targetTopology) == 0 {
		targetTopology = currentTopology
	}

	topologyGuard := guard.Disarmed()
	defer topologyGuard.Run()
	if !currentTopology.Equal(targetTopology) {
		topologyGuard.Arm(func() error { return m.driver.SetTopology(currentTopology) })
		if err := m.driver.SetTopology(targetTopology); err != nil {
			m.log.Errorw("failed to switch to the modified topology before reverting", "error", err)
			return types.RevertSwitchingTopologyFailed
		}
	}

	hdrGuard := guard.Disarmed()
	defer hdrGuard.Run()
	if len(cached.Modified.OriginalHdrStates) > 0 {
		currentHdr, err := m.driver.CurrentHdrStates(hdrStateIds(cached.Modified.OriginalHdrStates))
		if err != nil {
			m.log.Errorw("failed to read current HDR states during revert", "error", err)
			return types.RevertRevertingHdrStatesFailed
		}
		if !hdrStatesEqual(currentHdr, cached.Modified.OriginalHdrStates) {
			hdrGuard.Arm(func() error { return m.driver.SetHdrStates(currentHdr) })
			if err := m.driver.SetHdrStates(cached.Modified.OriginalHdrStates); err != nil {
				m.log.Errorw("failed to revert HDR states", "error", err)
				return types.RevertRevertingHdrStatesFailed
			}
		}
	}

	modeGuard := guard.Disarmed()
	defer modeGuard.Run()
	if len(cached.Modified.OriginalModes) > 0 {
		currentModes, err := m.driver.CurrentDisplayModes(displayModeIds(cached.Modified.OriginalModes))
		if err != nil {
			m.log.Errorw("failed to read current display modes during revert", "error", err)
			return types.RevertRevertingDisplayModesFailed
		}
		if !modesEqual(currentModes, cached.Modified.OriginalModes) {
			modeGuard.Arm(func() error { return m.driver.SetDisplayModes(currentModes) })
			if err := m.driver.SetDisplayModes(cached.Modified.OriginalModes); err != nil {
				m.log.Errorw("failed to revert display modes", "error", err)
				return types.RevertRevertingDisplayModesFailed
			}
		}
	}

	primaryGuard := guard.Disarmed()
	defer primaryGuard.Run()
	if cached.Modified.OriginalPrimaryDevice != "" && targetTopology.Flatten().Contains(cached.Modified.OriginalPrimaryDevice) {
		currentPrimary, err := planning.GetPrimaryDevice(m.driver, targetTopology)
		if err != nil {
			m.log.Errorw("failed to determine current primary device during revert", "error", err)
			return types.RevertRevertingPrimaryDeviceFailed
		}
		if currentPrimary != cached.Modified.OriginalPrimaryDevice {
			primaryGuard.Arm(func() error { return m.driver.SetAsPrimary(currentPrimary) })
			if err := m.driver.SetAsPrimary(cached.Modified.OriginalPrimaryDevice); err != nil {
				m.log.Errorw("failed to revert primary device", "error", err)
				return types.RevertRevertingPrimaryDeviceFailed
			}
		}
	}

	reduced := *cached
	reduced.Modified = cached.Modified.TopologyOnly()
	if !m.state.Persist(&reduced) {
		return types.RevertPersistenceSaveFailed
	}

	topologyGuard.Disarm()
	hdrGuard.Disarm()
	modeGuard.Disarm()
	primaryGuard.Disarm()
	return types.RevertOk
}

func hdrStateIds(states types.HdrStateMap) types.DeviceIdSet {
	ids := make(types.DeviceIdSet, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	return ids
}

func displayModeIds(modes types.DeviceDisplayModeMap) types.DeviceIdSet {
	ids := make(types.DeviceIdSet, 0, len(modes))
	for id := range modes {
		ids = append(ids, id)
	}
	return ids
}
