package ccd

import (
	"syscall"
	"unsafe"
)

// Advanced-color device info types, mirroring DISPLAYCONFIG_DEVICE_INFO_TYPE.
const (
	DeviceInfoTypeSetAdvancedColorInfo uint32 = 0x00000010
	DeviceInfoTypeGetAdvancedColorInfo uint32 = 15
)

// DisplayConfigGetAdvancedColorInfo mirrors DISPLAYCONFIG_GET_ADVANCED_COLOR_INFO.
// AdvancedColorSupported/Enabled/ForceDisabled/HdrMode... are packed as a bitfield
// in Value; only the bits this package cares about are decoded.
type DisplayConfigGetAdvancedColorInfo struct {
	Header DisplayConfigDeviceInfoHeader
	Value  uint32
}

// AdvancedColorSupported reports bit 0 of Value: the output is capable of
// advanced color (a prerequisite for HDR).
func (i DisplayConfigGetAdvancedColorInfo) AdvancedColorSupported() bool {
	return i.Value&0x1 != 0
}

// AdvancedColorEnabled reports bit 1 of Value: HDR is currently turned on.
func (i DisplayConfigGetAdvancedColorInfo) AdvancedColorEnabled() bool {
	return i.Value&0x2 != 0
}

// DisplayConfigSetAdvancedColorState mirrors
// DISPLAYCONFIG_SET_ADVANCED_COLOR_STATE.
type DisplayConfigSetAdvancedColorState struct {
	Header Header
	Value  uint32
}

// Header is an alias kept distinct from DisplayConfigDeviceInfoHeader only
// to match the set-call's slightly different historical name in docs;
// the wire layout is identical.
type Header = DisplayConfigDeviceInfoHeader

var procDisplayConfigSetDeviceInfo = user32.NewProc("DisplayConfigSetDeviceInfo")

// GetAdvancedColorInfo queries whether a target supports and currently has
// HDR enabled.
func GetAdvancedColorInfo(adapterId LUID, targetId uint32) (DisplayConfigGetAdvancedColorInfo, error) {
	info := DisplayConfigGetAdvancedColorInfo{
		Header: DisplayConfigDeviceInfoHeader{
			InfoType:  DeviceInfoTypeGetAdvancedColorInfo,
			AdapterId: adapterId,
			Id:        targetId,
		},
	}
	info.Header.Size = uint32(unsafe.Sizeof(info))

	if err := DisplayConfigGetDeviceInfoGeneric(unsafe.Pointer(&info.Header)); err != nil {
		return DisplayConfigGetAdvancedColorInfo{}, err
	}
	return info, nil
}

// SetAdvancedColorState enables or disables HDR on a target.
func SetAdvancedColorState(adapterId LUID, targetId uint32, enabled bool) error {
	state := DisplayConfigSetAdvancedColorState{
		Header: DisplayConfigDeviceInfoHeader{
			InfoType:  DeviceInfoTypeSetAdvancedColorInfo,
			AdapterId: adapterId,
			Id:        targetId,
		},
	}
	state.Header.Size = uint32(unsafe.Sizeof(state))
	if enabled {
		state.Value = 1
	}

	ret, _, _ := procDisplayConfigSetDeviceInfo.Call(uintptr(unsafe.Pointer(&state.Header)))
	if ret != 0 {
		return syscall.Errno(ret)
	}
	return nil
}

// DisplayConfigGetDeviceInfoGeneric is the generic counterpart of
// DisplayConfigGetDeviceInfo, accepting any *_HEADER-prefixed request
// struct rather than only DisplayConfigTargetDeviceName.
func DisplayConfigGetDeviceInfoGeneric(header unsafe.Pointer) error {
	ret, _, _ := procDisplayConfigGetDeviceInfo.Call(uintptr(header))
	if ret != 0 {
		return syscall.Errno(ret)
	}
	return nil
}
