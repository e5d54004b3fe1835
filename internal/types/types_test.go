package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ActiveTopology_Equal_IgnoresOrder(t *testing.T) {
	a := ActiveTopology{{"dev-1", "dev-2"}, {"dev-3"}}
	b := ActiveTopology{{"dev-3"}, {"dev-2", "dev-1"}}
	require.True(t, a.Equal(b))
}

func Test_ActiveTopology_Equal_DetectsDifference(t *testing.T) {
	a := ActiveTopology{{"dev-1"}, {"dev-2"}}
	b := ActiveTopology{{"dev-1", "dev-2"}}
	require.False(t, a.Equal(b))
}

func Test_ActiveTopology_Flatten(t *testing.T) {
	topology := ActiveTopology{{"dev-1", "dev-2"}, {"dev-3"}}
	flat := topology.Flatten()
	require.True(t, flat.Contains("dev-1"))
	require.True(t, flat.Contains("dev-2"))
	require.True(t, flat.Contains("dev-3"))
	require.False(t, flat.Contains("dev-4"))
}

func Test_DeviceIdSet_Equal_IgnoresOrder(t *testing.T) {
	a := DeviceIdSet{"dev-1", "dev-2"}
	b := DeviceIdSet{"dev-2", "dev-1"}
	require.True(t, a.Equal(b))
}

func Test_DeviceIdSet_MarshalJSON_IsSorted(t *testing.T) {
	s := DeviceIdSet{"dev-2", "dev-1"}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.JSONEq(t, `["dev-1","dev-2"]`, string(data))
}

func Test_RationalFromFloat_Quantizes(t *testing.T) {
	r := RationalFromFloat(59.94)
	require.Equal(t, uint32(599400), r.Numerator)
	require.Equal(t, uint32(10000), r.Denominator)
	require.InDelta(t, 59.94, r.Float(), 0.0001)
}

func Test_Rational_Float_ZeroDenominator(t *testing.T) {
	r := Rational{Numerator: 5, Denominator: 0}
	require.Equal(t, float64(0), r.Float())
}

func Test_RefreshRateRequest_UnmarshalJSON_RationalForm(t *testing.T) {
	var r RefreshRateRequest
	err := json.Unmarshal([]byte(`{"numerator":60000,"denominator":1000}`), &r)
	require.NoError(t, err)
	require.Equal(t, uint32(60000), r.Numerator)
	require.Equal(t, uint32(1000), r.Denominator)
}

func Test_RefreshRateRequest_UnmarshalJSON_FloatForm(t *testing.T) {
	var r RefreshRateRequest
	err := json.Unmarshal([]byte(`60`), &r)
	require.NoError(t, err)
	require.Equal(t, Rational(r), RationalFromFloat(60))
}

func Test_RefreshRateRequest_UnmarshalJSON_RoundTripsAsObject(t *testing.T) {
	var r RefreshRateRequest
	require.NoError(t, json.Unmarshal([]byte(`59.94`), &r))
	data, err := json.Marshal(r)
	require.NoError(t, err)
	require.Contains(t, string(data), `"numerator"`)
}

func Test_Initial_Equal(t *testing.T) {
	a := Initial{Topology: ActiveTopology{{"dev-1"}}, PrimaryDevices: DeviceIdSet{"dev-1"}}
	b := Initial{Topology: ActiveTopology{{"dev-1"}}, PrimaryDevices: DeviceIdSet{"dev-1"}}
	require.True(t, a.Equal(b))
}

func Test_Modified_HasModifications(t *testing.T) {
	require.False(t, Modified{}.HasModifications())
	require.True(t, Modified{OriginalPrimaryDevice: "dev-1"}.HasModifications())
	require.True(t, Modified{OriginalModes: DeviceDisplayModeMap{"dev-1": {}}}.HasModifications())
}

func Test_Modified_TopologyOnly(t *testing.T) {
	m := Modified{
		Topology:              ActiveTopology{{"dev-1"}},
		OriginalPrimaryDevice: "dev-1",
		OriginalModes:         DeviceDisplayModeMap{"dev-1": {}},
	}
	reduced := m.TopologyOnly()
	require.True(t, reduced.Topology.Equal(m.Topology))
	require.False(t, reduced.HasModifications())
}

func Test_SingleDisplayConfigState_Equal(t *testing.T) {
	state1 := SingleDisplayConfigState{
		Initial:  Initial{Topology: ActiveTopology{{"dev-1"}}, PrimaryDevices: DeviceIdSet{"dev-1"}},
		Modified: Modified{Topology: ActiveTopology{{"dev-1"}}},
	}
	state2 := state1
	require.True(t, state1.Equal(state2))

	state2.Modified.OriginalPrimaryDevice = "dev-2"
	require.False(t, state1.Equal(state2))
}

func Test_ApplyResult_String(t *testing.T) {
	require.Equal(t, "Ok", ApplyOk.String())
	require.Equal(t, "DevicePrepFailed", ApplyDevicePrepFailed.String())
	require.Equal(t, "Unknown", ApplyResult(999).String())
}

func Test_RevertResult_String(t *testing.T) {
	require.Equal(t, "Ok", RevertOk.String())
	require.Equal(t, "RevertingHdrStatesFailed", RevertRevertingHdrStatesFailed.String())
}
