package ccd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_InstanceIdFromMonitorDevicePath(t *testing.T) {
	path := `\\?\DISPLAY#GSM5A84#4&1d2d6c9c&0&UID4352#{e6f07b5f-ee97-4a90-b076-33f57bf4eaa7}`
	require.Equal(t, `DISPLAY\GSM5A84\4&1d2d6c9c&0&UID4352`, InstanceIdFromMonitorDevicePath(path))
}

func Test_InstanceIdFromMonitorDevicePath_RejectsNonDisplayPaths(t *testing.T) {
	require.Equal(t, "", InstanceIdFromMonitorDevicePath(`\\?\HID#VID_046D`))
}

func Test_InstanceIdFromMonitorDevicePath_RejectsTooFewSegments(t *testing.T) {
	require.Equal(t, "", InstanceIdFromMonitorDevicePath(`\\?\DISPLAY#GSM5A84`))
}

func Test_StableInstanceIdSlice_DropsThirdAndFourthFragments(t *testing.T) {
	got := StableInstanceIdSlice(`DISPLAY\GSM5A84\4&1d2d6c9c&0&UID4352`)
	require.Equal(t, `DISPLAY\GSM5A84\4&1d2d6c9c`, got)
}

func Test_StableInstanceIdSlice_ShortIdUnchanged(t *testing.T) {
	require.Equal(t, "DISPLAY&GSM5A84", StableInstanceIdSlice("DISPLAY&GSM5A84"))
}
