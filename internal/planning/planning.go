// Package planning holds the functions the settings manager uses to
// turn a requested configuration plus the current/initial state into
// concrete topology, mode and HDR targets. All of them only read
// through the driver, except BlankHdrStates, which writes HDR states
// and sleeps.
package planning

import (
	"errors"
	"fmt"
	"time"

	"displayswitchd/internal/types"
)

// Reader is the read-only subset of the DisplayDriver port these
// functions need; kept separate from device.Driver so this package has
// no dependency on the concrete driver implementation.
type Reader interface {
	Enumerate() ([]types.EnumeratedDevice, error)
	IsPrimary(id types.DeviceId) (bool, error)
}

// FlattenTopology returns the set of every device id appearing in t.
func FlattenTopology(t types.ActiveTopology) types.DeviceIdSet {
	return t.Flatten()
}

// CreateFullExtendedTopology builds a one-group-per-device topology from
// every device the driver currently enumerates, used as a last-resort
// recovery fallback when no valid topology can otherwise be recovered.
func CreateFullExtendedTopology(r Reader) (types.ActiveTopology, error) {
	devices, err := r.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	topology := make(types.ActiveTopology, 0, len(devices))
	for _, dev := range devices {
		topology = append(topology, types.TopologyGroup{dev.DeviceId})
	}
	return topology, nil
}

// GetPrimaryDevice returns the first device in topology's flattened set
// that the driver reports as primary; "" if none is.
func GetPrimaryDevice(r Reader, topology types.ActiveTopology) (types.DeviceId, error) {
	for _, id := range topology.Flatten() {
		primary, err := r.IsPrimary(id)
		if err != nil {
			continue
		}
		if primary {
			return id, nil
		}
	}
	return "", nil
}

// ComputeInitialState derives the baseline to persist as Initial. If
// prev is non-nil, it is returned unchanged — the initial snapshot is
// preserved verbatim across re-applies. Otherwise topologyBefore
// becomes the initial topology and every currently-primary device its
// primary set; this fails if no primary device exists at all.
func ComputeInitialState(r Reader, prev *types.Initial, topologyBefore types.ActiveTopology) (*types.Initial, error) {
	if prev != nil {
		return prev, nil
	}

	var primaries types.DeviceIdSet
	for _, id := range topologyBefore.Flatten() {
		isPrimary, err := r.IsPrimary(id)
		if err != nil {
			continue
		}
		if isPrimary {
			primaries = append(primaries, id)
		}
	}
	if len(primaries) == 0 {
		return nil, errors.New("no primary device found to compute initial state")
	}
	return &types.Initial{Topology: topologyBefore, PrimaryDevices: primaries}, nil
}

// StripInitialState removes devices no longer present in enumerated
// from both the topology and the primary set. If the primary set goes
// empty, it is refilled from enumerated's currently-primary devices.
// Fails if the stripped topology ends up empty.
func StripInitialState(initial types.Initial, enumerated []types.EnumeratedDevice) (*types.Initial, error) {
	present := map[types.DeviceId]bool{}
	for _, dev := range enumerated {
		present[dev.DeviceId] = true
	}

	var strippedTopology types.ActiveTopology
	for _, group := range initial.Topology {
		var strippedGroup types.TopologyGroup
		for _, id := range group {
			if present[id] {
				strippedGroup = append(strippedGroup, id)
			}
		}
		if len(strippedGroup) > 0 {
			strippedTopology = append(strippedTopology, strippedGroup)
		}
	}
	if len(strippedTopology) == 0 {
		return nil, errors.New("stripped initial topology is empty, no known devices remain")
	}

	var strippedPrimaries types.DeviceIdSet
	for _, id := range initial.PrimaryDevices {
		if present[id] {
			strippedPrimaries = append(strippedPrimaries, id)
		}
	}
	if len(strippedPrimaries) == 0 {
		for _, dev := range enumerated {
			if dev.Info != nil && dev.Info.Primary {
				strippedPrimaries = append(strippedPrimaries, dev.DeviceId)
			}
		}
	}

	return &types.Initial{Topology: strippedTopology, PrimaryDevices: strippedPrimaries}, nil
}

// ComputeNewTopology derives the topology to request for devicePrep.
func ComputeNewTopology(devicePrep types.DevicePrep, configuringPrimary bool, target types.DeviceId, additional types.DeviceIdSet, initialTopology types.ActiveTopology) types.ActiveTopology {
	switch devicePrep {
	case types.DevicePrepVerifyOnly:
		return initialTopology

	case types.DevicePrepEnsureOnlyDisplay:
		group := types.TopologyGroup{target}
		if configuringPrimary {
			group = append(group, additional...)
		}
		return types.ActiveTopology{group}

	case types.DevicePrepEnsureActive, types.DevicePrepEnsurePrimary:
		if initialTopology.Flatten().Contains(target) {
			return initialTopology
		}
		out := make(types.ActiveTopology, len(initialTopology), len(initialTopology)+1)
		copy(out, initialTopology)
		return append(out, types.TopologyGroup{target})

	default:
		return initialTopology
	}
}

// ComputeNewTopologyAndMetadata picks the device to configure (deviceId
// if given, else the first primary) and the "additional" devices that
// accompany it (the other primaries, when configuring the primary
// group; otherwise its group-mates in the initial topology), then
// derives the new topology from those choices.
func ComputeNewTopologyAndMetadata(devicePrep types.DevicePrep, deviceId types.DeviceId, initial types.Initial) (newTopology types.ActiveTopology, deviceToConfigure types.DeviceId, additional types.DeviceIdSet) {
	deviceToConfigure = deviceId
	configuringPrimary := deviceId == ""
	if configuringPrimary {
		if len(initial.PrimaryDevices) > 0 {
			deviceToConfigure = initial.PrimaryDevices[0]
		}
	} else {
		configuringPrimary = initial.PrimaryDevices.Contains(deviceId)
	}

	if configuringPrimary {
		for _, id := range initial.PrimaryDevices {
			if id != deviceToConfigure {
				additional = append(additional, id)
			}
		}
	} else {
		for _, group := range initial.Topology {
			if !groupContains(group, deviceToConfigure) {
				continue
			}
			for _, id := range group {
				if id != deviceToConfigure {
					additional = append(additional, id)
				}
			}
			break
		}
	}

	newTopology = ComputeNewTopology(devicePrep, configuringPrimary, deviceToConfigure, additional, initial.Topology)
	return newTopology, deviceToConfigure, additional
}

func groupContains(group types.TopologyGroup, id types.DeviceId) bool {
	for _, g := range group {
		if g == id {
			return true
		}
	}
	return false
}

// ComputeNewDisplayModes derives the modes to request. A requested
// resolution always applies to target and every additional device
// (duplicates must share resolution). A requested refresh rate applies
// to target and additional only when configuring the primary group;
// otherwise only to target.
func ComputeNewDisplayModes(resolution *types.Resolution, refreshRate *types.Rational, configuringPrimary bool, target types.DeviceId, additional types.DeviceIdSet, originals types.DeviceDisplayModeMap) types.DeviceDisplayModeMap {
	if resolution == nil && refreshRate == nil {
		return nil
	}

	out := types.DeviceDisplayModeMap{}
	for id, mode := range originals {
		out[id] = mode
	}

	applyTo := types.DeviceIdSet{target}
	if resolution != nil {
		applyTo = append(applyTo, additional...)
	} else if refreshRate != nil && configuringPrimary {
		applyTo = append(applyTo, additional...)
	}

	for _, id := range applyTo {
		mode := out[id]
		if resolution != nil {
			mode.Resolution = *resolution
		}
		if refreshRate != nil && (configuringPrimary || id == target) {
			mode.RefreshRate = *refreshRate
		}
		out[id] = mode
	}
	return out
}

// ComputeNewHdrStates derives the HDR states to request, following the
// same target/additional shape as ComputeNewDisplayModes. Devices whose
// original state is unsupported (nil) are left untouched.
func ComputeNewHdrStates(hdrState *types.HdrState, configuringPrimary bool, target types.DeviceId, additional types.DeviceIdSet, originals types.HdrStateMap) types.HdrStateMap {
	if hdrState == nil {
		return nil
	}

	out := types.HdrStateMap{}
	for id, state := range originals {
		out[id] = state
	}

	applyTo := types.DeviceIdSet{target}
	if configuringPrimary {
		applyTo = append(applyTo, additional...)
	}

	for _, id := range applyTo {
		if out[id] == nil {
			continue // unsupported, silently ignored
		}
		s := *hdrState
		out[id] = &s
	}
	return out
}

// HdrReader is the subset of the DisplayDriver port BlankHdrStates
// needs: enough to find every active device's current HDR state and
// flip it.
type HdrReader interface {
	Enumerate() ([]types.EnumeratedDevice, error)
	CurrentHdrStates(ids types.DeviceIdSet) (types.HdrStateMap, error)
	SetHdrStates(states types.HdrStateMap) error
}

// BlankHdrStates is the workaround for a Windows bug where the desktop
// flashes into an incorrect color profile after a display-settings
// write: if delayMillis is set and any active device currently has HDR
// enabled, those devices are flipped off, held for delayMillis, then
// flipped back on. A nil delayMillis disables the workaround entirely.
func BlankHdrStates(d HdrReader, delayMillis *uint64, sleep func(time.Duration)) error {
	if delayMillis == nil {
		return nil
	}

	devices, err := d.Enumerate()
	if err != nil {
		return fmt.Errorf("failed to enumerate devices for HDR blank: %w", err)
	}
	var ids types.DeviceIdSet
	for _, dev := range devices {
		if dev.Info != nil {
			ids = append(ids, dev.DeviceId)
		}
	}

	states, err := d.CurrentHdrStates(ids)
	if err != nil {
		return fmt.Errorf("failed to read HDR states for blank workaround: %w", err)
	}

	var enabled types.DeviceIdSet
	for id, state := range states {
		if state != nil && *state == types.HdrStateEnabled {
			enabled = append(enabled, id)
		}
	}
	if len(enabled) == 0 {
		return nil
	}

	off := types.HdrStateDisabled
	offMap := types.HdrStateMap{}
	for _, id := range enabled {
		s := off
		offMap[id] = &s
	}
	if err := d.SetHdrStates(offMap); err != nil {
		return fmt.Errorf("failed to disable HDR for blank workaround: %w", err)
	}

	sleep(time.Duration(*delayMillis) * time.Millisecond)

	on := types.HdrStateEnabled
	onMap := types.HdrStateMap{}
	for _, id := range enabled {
		s := on
		onMap[id] = &s
	}
	if err := d.SetHdrStates(onMap); err != nil {
		return fmt.Errorf("failed to re-enable HDR after blank workaround: %w", err)
	}
	return nil
}

// FuzzyRefreshRateEqual reports whether two refresh rates are within
// 0.9 Hz of each other, the tolerance the OS round-trip needs (e.g. 60
// Hz frequently reads back as 59.95 Hz).
func FuzzyRefreshRateEqual(a, b types.Rational) bool {
	if a.Denominator == 0 || b.Denominator == 0 {
		return false
	}
	diff := a.Float() - b.Float()
	if diff < 0 {
		diff = -diff
	}
	return diff <= 0.9
}

// FuzzyModeEqual compares resolution exactly and refresh rate fuzzily.
func FuzzyModeEqual(a, b types.DisplayMode) bool {
	return a.Resolution == b.Resolution && FuzzyRefreshRateEqual(a.RefreshRate, b.RefreshRate)
}
