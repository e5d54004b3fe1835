package planning

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"displayswitchd/internal/types"
)

type fakeReader struct {
	devices   []types.EnumeratedDevice
	primaries map[types.DeviceId]bool
	enumErr   error
}

func (f *fakeReader) Enumerate() ([]types.EnumeratedDevice, error) {
	return f.devices, f.enumErr
}

func (f *fakeReader) IsPrimary(id types.DeviceId) (bool, error) {
	return f.primaries[id], nil
}

func Test_FuzzyRefreshRateEqual(t *testing.T) {
	a := types.Rational{Numerator: 60000, Denominator: 1000}
	b := types.Rational{Numerator: 59940, Denominator: 1000}
	require.True(t, FuzzyRefreshRateEqual(a, b))

	c := types.Rational{Numerator: 50000, Denominator: 1000}
	require.False(t, FuzzyRefreshRateEqual(a, c))
}

func Test_FuzzyModeEqual_ResolutionMustMatchExactly(t *testing.T) {
	a := types.DisplayMode{Resolution: types.Resolution{Width: 1920, Height: 1080}, RefreshRate: types.Rational{Numerator: 60, Denominator: 1}}
	b := types.DisplayMode{Resolution: types.Resolution{Width: 1920, Height: 1080}, RefreshRate: types.Rational{Numerator: 5994, Denominator: 100}}
	require.True(t, FuzzyModeEqual(a, b))

	c := types.DisplayMode{Resolution: types.Resolution{Width: 1280, Height: 720}, RefreshRate: b.RefreshRate}
	require.False(t, FuzzyModeEqual(a, c))
}

func Test_GetPrimaryDevice(t *testing.T) {
	r := &fakeReader{primaries: map[types.DeviceId]bool{"dev-2": true}}
	id, err := GetPrimaryDevice(r, types.ActiveTopology{{"dev-1"}, {"dev-2"}})
	require.NoError(t, err)
	require.Equal(t, types.DeviceId("dev-2"), id)
}

func Test_GetPrimaryDevice_NoneFound(t *testing.T) {
	r := &fakeReader{}
	id, err := GetPrimaryDevice(r, types.ActiveTopology{{"dev-1"}})
	require.NoError(t, err)
	require.Equal(t, types.DeviceId(""), id)
}

func Test_ComputeInitialState_PreservesExistingSnapshot(t *testing.T) {
	r := &fakeReader{}
	prev := &types.Initial{Topology: types.ActiveTopology{{"dev-9"}}, PrimaryDevices: types.DeviceIdSet{"dev-9"}}
	got, err := ComputeInitialState(r, prev, types.ActiveTopology{{"dev-1"}})
	require.NoError(t, err)
	require.True(t, got.Equal(*prev))
}

func Test_ComputeInitialState_BuildsFromCurrentTopology(t *testing.T) {
	r := &fakeReader{primaries: map[types.DeviceId]bool{"dev-1": true}}
	topologyBefore := types.ActiveTopology{{"dev-1"}, {"dev-2"}}
	got, err := ComputeInitialState(r, nil, topologyBefore)
	require.NoError(t, err)
	require.True(t, got.Topology.Equal(topologyBefore))
	require.True(t, got.PrimaryDevices.Contains("dev-1"))
}

func Test_ComputeInitialState_FailsWithNoPrimary(t *testing.T) {
	r := &fakeReader{}
	_, err := ComputeInitialState(r, nil, types.ActiveTopology{{"dev-1"}})
	require.Error(t, err)
}

func Test_StripInitialState_RemovesUnknownDevices(t *testing.T) {
	initial := types.Initial{
		Topology:       types.ActiveTopology{{"dev-1", "dev-2"}, {"dev-3"}},
		PrimaryDevices: types.DeviceIdSet{"dev-3"},
	}
	enumerated := []types.EnumeratedDevice{{DeviceId: "dev-1"}, {DeviceId: "dev-2"}}
	got, err := StripInitialState(initial, enumerated)
	require.NoError(t, err)
	require.Len(t, got.Topology, 1)
	require.Len(t, got.Topology[0], 2)
}

func Test_StripInitialState_RefillsPrimaryFromEnumerated(t *testing.T) {
	initial := types.Initial{
		Topology:       types.ActiveTopology{{"dev-1"}},
		PrimaryDevices: types.DeviceIdSet{"dev-gone"},
	}
	enumerated := []types.EnumeratedDevice{{DeviceId: "dev-1", Info: &types.DeviceInfo{Primary: true}}}
	got, err := StripInitialState(initial, enumerated)
	require.NoError(t, err)
	require.True(t, got.PrimaryDevices.Contains("dev-1"))
}

func Test_StripInitialState_FailsWhenTopologyEmpty(t *testing.T) {
	initial := types.Initial{Topology: types.ActiveTopology{{"dev-gone"}}, PrimaryDevices: types.DeviceIdSet{"dev-gone"}}
	_, err := StripInitialState(initial, nil)
	require.Error(t, err)
}

func Test_ComputeNewTopology_EnsureActiveAddsNewGroup(t *testing.T) {
	initial := types.ActiveTopology{{"dev-1"}}
	got := ComputeNewTopology(types.DevicePrepEnsureActive, false, "dev-2", nil, initial)
	require.True(t, got.Flatten().Contains("dev-1"))
	require.True(t, got.Flatten().Contains("dev-2"))
}

func Test_ComputeNewTopology_EnsureOnlyDisplay(t *testing.T) {
	initial := types.ActiveTopology{{"dev-1"}, {"dev-2"}}
	got := ComputeNewTopology(types.DevicePrepEnsureOnlyDisplay, false, "dev-2", nil, initial)
	require.Len(t, got, 1)
	require.Equal(t, types.DeviceId("dev-2"), got[0][0])
}

func Test_ComputeNewTopology_VerifyOnlyUnchanged(t *testing.T) {
	initial := types.ActiveTopology{{"dev-1"}}
	got := ComputeNewTopology(types.DevicePrepVerifyOnly, false, "dev-1", nil, initial)
	require.True(t, got.Equal(initial))
}

func Test_ComputeNewDisplayModes_ResolutionAppliesToGroup(t *testing.T) {
	originals := types.DeviceDisplayModeMap{
		"dev-1": {Resolution: types.Resolution{Width: 1280, Height: 720}},
		"dev-2": {Resolution: types.Resolution{Width: 1280, Height: 720}},
	}
	res := types.Resolution{Width: 1920, Height: 1080}
	got := ComputeNewDisplayModes(&res, nil, false, "dev-1", types.DeviceIdSet{"dev-2"}, originals)
	require.Equal(t, res, got["dev-1"].Resolution)
	require.Equal(t, res, got["dev-2"].Resolution)
}

func Test_ComputeNewDisplayModes_RefreshRateOnlyAppliesWhenConfiguringPrimary(t *testing.T) {
	originals := types.DeviceDisplayModeMap{"dev-1": {}, "dev-2": {}}
	rr := types.Rational{Numerator: 60, Denominator: 1}
	got := ComputeNewDisplayModes(nil, &rr, false, "dev-1", types.DeviceIdSet{"dev-2"}, originals)
	require.Equal(t, rr, got["dev-1"].RefreshRate)
	require.NotEqual(t, rr, got["dev-2"].RefreshRate)
}

func Test_ComputeNewHdrStates_SkipsUnsupported(t *testing.T) {
	originals := types.HdrStateMap{"dev-1": nil}
	enabled := types.HdrStateEnabled
	got := ComputeNewHdrStates(&enabled, false, "dev-1", nil, originals)
	require.Nil(t, got["dev-1"])
}

func Test_ComputeNewHdrStates_AppliesToTarget(t *testing.T) {
	disabled := types.HdrStateDisabled
	originals := types.HdrStateMap{"dev-1": &disabled}
	enabled := types.HdrStateEnabled
	got := ComputeNewHdrStates(&enabled, false, "dev-1", nil, originals)
	require.Equal(t, types.HdrStateEnabled, *got["dev-1"])
}

type fakeHdrReader struct {
	devices []types.EnumeratedDevice
	states  types.HdrStateMap
	setErr  error
	history []types.HdrStateMap
}

func (f *fakeHdrReader) Enumerate() ([]types.EnumeratedDevice, error) {
	return f.devices, nil
}

func (f *fakeHdrReader) CurrentHdrStates(ids types.DeviceIdSet) (types.HdrStateMap, error) {
	return f.states, nil
}

func (f *fakeHdrReader) SetHdrStates(states types.HdrStateMap) error {
	f.history = append(f.history, states)
	if f.setErr != nil {
		return f.setErr
	}
	for id, s := range states {
		f.states[id] = s
	}
	return nil
}

func Test_BlankHdrStates_NilDelayIsNoop(t *testing.T) {
	r := &fakeHdrReader{}
	require.NoError(t, BlankHdrStates(r, nil, func(time.Duration) {}))
	require.Nil(t, r.history)
}

func Test_BlankHdrStates_NoEnabledDevicesIsNoop(t *testing.T) {
	delay := uint64(10)
	disabled := types.HdrStateDisabled
	r := &fakeHdrReader{
		devices: []types.EnumeratedDevice{{DeviceId: "dev-1", Info: &types.DeviceInfo{}}},
		states:  types.HdrStateMap{"dev-1": &disabled},
	}
	require.NoError(t, BlankHdrStates(r, &delay, func(time.Duration) {}))
	require.Nil(t, r.history)
}

func Test_BlankHdrStates_TogglesEnabledDevicesOffThenOn(t *testing.T) {
	delay := uint64(10)
	enabled := types.HdrStateEnabled
	r := &fakeHdrReader{
		devices: []types.EnumeratedDevice{{DeviceId: "dev-1", Info: &types.DeviceInfo{}}},
		states:  types.HdrStateMap{"dev-1": &enabled},
	}
	var slept time.Duration
	err := BlankHdrStates(r, &delay, func(d time.Duration) { slept = d })
	require.NoError(t, err)
	require.Len(t, r.history, 2)
	require.Equal(t, types.HdrStateDisabled, *r.history[0]["dev-1"])
	require.Equal(t, types.HdrStateEnabled, *r.history[1]["dev-1"])
	require.Equal(t, 10*time.Millisecond, slept)
}

func Test_BlankHdrStates_PropagatesEnumerateError(t *testing.T) {
	delay := uint64(10)
	r := &fakeReaderHdrErr{}
	err := BlankHdrStates(r, &delay, func(time.Duration) {})
	require.Error(t, err)
}

type fakeReaderHdrErr struct{}

func (fakeReaderHdrErr) Enumerate() ([]types.EnumeratedDevice, error) {
	return nil, errors.New("enumerate failed")
}
func (fakeReaderHdrErr) CurrentHdrStates(types.DeviceIdSet) (types.HdrStateMap, error) {
	return nil, nil
}
func (fakeReaderHdrErr) SetHdrStates(types.HdrStateMap) error { return nil }
