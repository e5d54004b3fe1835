package settings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"displayswitchd/internal/audio"
	"displayswitchd/internal/persistence"
	"displayswitchd/internal/types"
)

type fakeDriver struct {
	apiAvailable bool
	topology     types.ActiveTopology
	devices      []types.EnumeratedDevice
	modes        types.DeviceDisplayModeMap
	primary      types.DeviceId
	hdrStates    types.HdrStateMap

	setTopologyErr error
	setModesErr    error
	setPrimaryErr  error
	setHdrErr      error

	topologyWrites [][]types.ActiveTopology
	modeWrites     []types.DeviceDisplayModeMap
	primaryWrites  []types.DeviceId
	hdrWrites      []types.HdrStateMap
}

func (f *fakeDriver) IsApiAccessAvailable() bool { return f.apiAvailable }

func (f *fakeDriver) Enumerate() ([]types.EnumeratedDevice, error) {
	return f.devices, nil
}

func (f *fakeDriver) DisplayName(id types.DeviceId) types.DisplayName { return "" }

func (f *fakeDriver) CurrentTopology() (types.ActiveTopology, error) {
	return f.topology, nil
}

func (f *fakeDriver) IsTopologyValid(topology types.ActiveTopology) bool {
	return len(topology) > 0
}

func (f *fakeDriver) IsTopologySame(a, b types.ActiveTopology) bool { return a.Equal(b) }

func (f *fakeDriver) SetTopology(topology types.ActiveTopology) error {
	f.topologyWrites = append(f.topologyWrites, []types.ActiveTopology{topology})
	if f.setTopologyErr != nil {
		return f.setTopologyErr
	}
	f.topology = topology
	return nil
}

func (f *fakeDriver) CurrentDisplayModes(ids types.DeviceIdSet) (types.DeviceDisplayModeMap, error) {
	out := types.DeviceDisplayModeMap{}
	for _, id := range ids {
		if mode, ok := f.modes[id]; ok {
			out[id] = mode
		}
	}
	return out, nil
}

func (f *fakeDriver) SetDisplayModes(modes types.DeviceDisplayModeMap) error {
	f.modeWrites = append(f.modeWrites, modes)
	if f.setModesErr != nil {
		return f.setModesErr
	}
	for id, mode := range modes {
		f.modes[id] = mode
	}
	return nil
}

func (f *fakeDriver) IsPrimary(id types.DeviceId) (bool, error) {
	return f.primary == id, nil
}

func (f *fakeDriver) SetAsPrimary(id types.DeviceId) error {
	f.primaryWrites = append(f.primaryWrites, id)
	if f.setPrimaryErr != nil {
		return f.setPrimaryErr
	}
	f.primary = id
	return nil
}

func (f *fakeDriver) CurrentHdrStates(ids types.DeviceIdSet) (types.HdrStateMap, error) {
	out := types.HdrStateMap{}
	for _, id := range ids {
		if state, ok := f.hdrStates[id]; ok {
			out[id] = state
		}
	}
	return out, nil
}

func (f *fakeDriver) SetHdrStates(states types.HdrStateMap) error {
	f.hdrWrites = append(f.hdrWrites, states)
	if f.setHdrErr != nil {
		return f.setHdrErr
	}
	for id, state := range states {
		f.hdrStates[id] = state
	}
	return nil
}

func newTestManager(t *testing.T, driver *fakeDriver) *Manager {
	t.Helper()
	state, err := persistence.New(persistence.NoopSettingsPersistence{}, nil, false)
	require.NoError(t, err)
	return New(driver, state, audio.Noop{}, types.WinWorkarounds{}, nil)
}

func Test_Apply_ApiUnavailable(t *testing.T) {
	driver := &fakeDriver{apiAvailable: false}
	m := newTestManager(t, driver)
	result := m.Apply(types.SingleDisplayConfiguration{DevicePrep: types.DevicePrepEnsureActive})
	require.Equal(t, types.ApplyApiTemporarilyUnavailable, result)
}

func Test_Apply_InvalidCurrentTopology(t *testing.T) {
	driver := &fakeDriver{apiAvailable: true, topology: nil}
	m := newTestManager(t, driver)
	result := m.Apply(types.SingleDisplayConfiguration{DevicePrep: types.DevicePrepEnsureActive})
	require.Equal(t, types.ApplyDevicePrepFailed, result)
}

func Test_Apply_ChangesResolutionOfCurrentPrimary(t *testing.T) {
	driver := &fakeDriver{
		apiAvailable: true,
		topology:     types.ActiveTopology{{"dev-1"}},
		devices: []types.EnumeratedDevice{
			{DeviceId: "dev-1", Info: &types.DeviceInfo{Primary: true, Resolution: types.Resolution{Width: 1280, Height: 720}}},
		},
		modes:     types.DeviceDisplayModeMap{"dev-1": {Resolution: types.Resolution{Width: 1280, Height: 720}}},
		primary:   "dev-1",
		hdrStates: types.HdrStateMap{},
	}
	m := newTestManager(t, driver)

	result := m.Apply(types.SingleDisplayConfiguration{
		DevicePrep: types.DevicePrepEnsureActive,
		Resolution: &types.Resolution{Width: 1920, Height: 1080},
	})

	require.Equal(t, types.ApplyOk, result)
	require.Equal(t, types.Resolution{Width: 1920, Height: 1080}, driver.modes["dev-1"].Resolution)
	require.Len(t, driver.modeWrites, 1)
	require.Empty(t, driver.topologyWrites, "topology unchanged, should never be written")

	cached := m.state.State()
	require.NotNil(t, cached)
	require.Equal(t, types.Resolution{Width: 1280, Height: 720}, cached.Modified.OriginalModes["dev-1"].Resolution)
}

func Test_Apply_EnsureActive_AddsNewDeviceToTopology(t *testing.T) {
	driver := &fakeDriver{
		apiAvailable: true,
		topology:     types.ActiveTopology{{"dev-1"}},
		devices: []types.EnumeratedDevice{
			{DeviceId: "dev-1", Info: &types.DeviceInfo{Primary: true}},
			{DeviceId: "dev-2"},
		},
		modes:     types.DeviceDisplayModeMap{},
		primary:   "dev-1",
		hdrStates: types.HdrStateMap{},
	}
	m := newTestManager(t, driver)

	result := m.Apply(types.SingleDisplayConfiguration{
		DeviceId:   "dev-2",
		DevicePrep: types.DevicePrepEnsureActive,
	})

	require.Equal(t, types.ApplyOk, result)
	require.Len(t, driver.topologyWrites, 1)
	require.True(t, driver.topology.Flatten().Contains("dev-2"))
}

func Test_Apply_RollsBackTopologyWhenModePrepFails(t *testing.T) {
	driver := &fakeDriver{
		apiAvailable: true,
		topology:     types.ActiveTopology{{"dev-1"}},
		devices: []types.EnumeratedDevice{
			{DeviceId: "dev-1", Info: &types.DeviceInfo{Primary: true}},
			{DeviceId: "dev-2"},
		},
		modes:     types.DeviceDisplayModeMap{},
		primary:   "dev-1",
		hdrStates: types.HdrStateMap{},
		setModesErr: errors.New("mode write failed"),
	}
	m := newTestManager(t, driver)

	result := m.Apply(types.SingleDisplayConfiguration{
		DeviceId:   "dev-2",
		DevicePrep: types.DevicePrepEnsureActive,
		Resolution: &types.Resolution{Width: 1920, Height: 1080},
	})

	require.Equal(t, types.ApplyDisplayModePrepFailed, result)
	require.Len(t, driver.topologyWrites, 2, "topology should be set, then rolled back")
}

func Test_Apply_SecondApplyPreservesOriginalModesAcrossReapply(t *testing.T) {
	driver := &fakeDriver{
		apiAvailable: true,
		topology:     types.ActiveTopology{{"dev-1"}},
		devices: []types.EnumeratedDevice{
			{DeviceId: "dev-1", Info: &types.DeviceInfo{Primary: true, Resolution: types.Resolution{Width: 1280, Height: 720}}},
		},
		modes:     types.DeviceDisplayModeMap{"dev-1": {Resolution: types.Resolution{Width: 1280, Height: 720}}},
		primary:   "dev-1",
		hdrStates: types.HdrStateMap{},
	}
	m := newTestManager(t, driver)

	first := m.Apply(types.SingleDisplayConfiguration{
		DevicePrep: types.DevicePrepEnsureActive,
		Resolution: &types.Resolution{Width: 1920, Height: 1080},
	})
	require.Equal(t, types.ApplyOk, first)

	second := m.Apply(types.SingleDisplayConfiguration{
		DevicePrep: types.DevicePrepEnsureActive,
		Resolution: &types.Resolution{Width: 2560, Height: 1440},
	})
	require.Equal(t, types.ApplyOk, second)
	require.Equal(t, types.Resolution{Width: 2560, Height: 1440}, driver.modes["dev-1"].Resolution)

	cached := m.state.State()
	require.NotNil(t, cached)
	require.Equal(t, types.Resolution{Width: 1280, Height: 720}, cached.Modified.OriginalModes["dev-1"].Resolution,
		"a second apply must keep recording the pristine baseline, not the first apply's already-modified resolution")
}

func Test_Apply_SecondApplyPreservesOriginalPrimaryAcrossReapply(t *testing.T) {
	driver := &fakeDriver{
		apiAvailable: true,
		topology:     types.ActiveTopology{{"dev-1"}, {"dev-2"}, {"dev-3"}},
		devices: []types.EnumeratedDevice{
			{DeviceId: "dev-1", Info: &types.DeviceInfo{Primary: true}},
			{DeviceId: "dev-2"},
			{DeviceId: "dev-3"},
		},
		modes:     types.DeviceDisplayModeMap{},
		primary:   "dev-1",
		hdrStates: types.HdrStateMap{},
	}
	m := newTestManager(t, driver)

	first := m.Apply(types.SingleDisplayConfiguration{
		DeviceId:   "dev-2",
		DevicePrep: types.DevicePrepEnsurePrimary,
	})
	require.Equal(t, types.ApplyOk, first)
	require.Equal(t, types.DeviceId("dev-2"), driver.primary)

	second := m.Apply(types.SingleDisplayConfiguration{
		DeviceId:   "dev-3",
		DevicePrep: types.DevicePrepEnsurePrimary,
	})
	require.Equal(t, types.ApplyOk, second)
	require.Equal(t, types.DeviceId("dev-3"), driver.primary)

	cached := m.state.State()
	require.NotNil(t, cached)
	require.Equal(t, types.DeviceId("dev-1"), cached.Modified.OriginalPrimaryDevice,
		"a second EnsurePrimary apply must keep recording the true original primary, not the first apply's target")
}

func Test_Revert_NoPersistedStateIsNoop(t *testing.T) {
	driver := &fakeDriver{apiAvailable: true, topology: types.ActiveTopology{{"dev-1"}}}
	m := newTestManager(t, driver)
	require.Equal(t, types.RevertOk, m.Revert())
	require.Empty(t, driver.topologyWrites)
}

func Test_Revert_RestoresModifiedModesAndClearsPersistence(t *testing.T) {
	driver := &fakeDriver{
		apiAvailable: true,
		topology:     types.ActiveTopology{{"dev-1"}},
		modes:        types.DeviceDisplayModeMap{"dev-1": {Resolution: types.Resolution{Width: 1920, Height: 1080}}},
		primary:      "dev-1",
		hdrStates:    types.HdrStateMap{},
	}
	m := newTestManager(t, driver)

	seeded := types.SingleDisplayConfigState{
		Initial: types.Initial{Topology: types.ActiveTopology{{"dev-1"}}, PrimaryDevices: types.DeviceIdSet{"dev-1"}},
		Modified: types.Modified{
			Topology:      types.ActiveTopology{{"dev-1"}},
			OriginalModes: types.DeviceDisplayModeMap{"dev-1": {Resolution: types.Resolution{Width: 1280, Height: 720}}},
		},
	}
	require.True(t, m.state.Persist(&seeded))

	result := m.Revert()
	require.Equal(t, types.RevertOk, result)
	require.Equal(t, types.Resolution{Width: 1280, Height: 720}, driver.modes["dev-1"].Resolution)
	require.Nil(t, m.state.State())
}

func Test_Revert_SwitchesToModifiedTopologyBeforeUndoingChanges(t *testing.T) {
	driver := &fakeDriver{
		apiAvailable: true,
		topology:     types.ActiveTopology{{"dev-1"}},
		devices: []types.EnumeratedDevice{
			{DeviceId: "dev-1"},
		},
		modes:     types.DeviceDisplayModeMap{"dev-1": {Resolution: types.Resolution{Width: 1920, Height: 1080}}},
		primary:   "dev-1",
		hdrStates: types.HdrStateMap{},
	}
	m := newTestManager(t, driver)

	seeded := types.SingleDisplayConfigState{
		Initial: types.Initial{Topology: types.ActiveTopology{{"dev-1"}}, PrimaryDevices: types.DeviceIdSet{"dev-1"}},
		Modified: types.Modified{
			Topology:      types.ActiveTopology{{"dev-1"}, {"dev-2"}},
			OriginalModes: types.DeviceDisplayModeMap{"dev-1": {Resolution: types.Resolution{Width: 1280, Height: 720}}},
		},
	}
	require.True(t, m.state.Persist(&seeded))

	result := m.Revert()
	require.Equal(t, types.RevertOk, result)

	require.Len(t, driver.topologyWrites, 2, "must switch to Modified.Topology to read/undo changes, then to Initial.Topology")
	require.True(t, driver.topologyWrites[0][0].Equal(types.ActiveTopology{{"dev-1"}, {"dev-2"}}))
	require.True(t, driver.topologyWrites[1][0].Equal(types.ActiveTopology{{"dev-1"}}))
	require.Equal(t, types.Resolution{Width: 1280, Height: 720}, driver.modes["dev-1"].Resolution)
	require.Nil(t, m.state.State())
}

func Test_ResetPersistence_ForceClearsOnRevertFailure(t *testing.T) {
	driver := &fakeDriver{
		apiAvailable: true,
		topology:     types.ActiveTopology{{"dev-1"}, {"dev-2"}},
		devices: []types.EnumeratedDevice{
			{DeviceId: "dev-1"},
			{DeviceId: "dev-2"},
		},
		primary:        "dev-1",
		hdrStates:      types.HdrStateMap{},
		modes:          types.DeviceDisplayModeMap{"dev-1": {}},
		setTopologyErr: errors.New("boom"),
	}
	m := newTestManager(t, driver)

	seeded := types.SingleDisplayConfigState{
		Initial:  types.Initial{Topology: types.ActiveTopology{{"dev-1"}}, PrimaryDevices: types.DeviceIdSet{"dev-1"}},
		Modified: types.Modified{Topology: types.ActiveTopology{{"dev-1"}, {"dev-2"}}},
	}
	require.True(t, m.state.Persist(&seeded))

	result := m.ResetPersistence()
	require.NotEqual(t, types.RevertOk, result)
	require.Nil(t, m.state.State(), "persisted state must be force-cleared even when the device side fails to converge")
}
