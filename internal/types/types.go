// Package types holds the data model shared by the planning utilities,
// the display driver port and the settings manager: device identities,
// topology, display modes, HDR state and the persisted configuration
// snapshot.
package types

import (
	"encoding/json"
	"math"
	"sort"
)

// DeviceId is an opaque, stable identifier for a physical display,
// derived by hashing EDID bytes together with the stable part of the
// device's Windows instance id. It survives driver reinstalls and port
// swaps; it is never the same as the OS-assigned DisplayName.
type DeviceId string

// DisplayName is the OS-assigned logical name (e.g. \\.\DISPLAY1). It is
// volatile across reboots and must never be used as a device identity.
type DisplayName string

// Resolution is a pixel width/height pair.
type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Rational represents a refresh rate (or scale factor) as a fraction,
// matching the representation Windows itself returns from CCD.
type Rational struct {
	Numerator   uint32 `json:"numerator"`
	Denominator uint32 `json:"denominator"`
}

// Float converts the rational to a float64. Returns 0 for a zero
// denominator instead of panicking; callers that care should check
// Denominator first.
func (r Rational) Float() float64 {
	if r.Denominator == 0 {
		return 0
	}
	return float64(r.Numerator) / float64(r.Denominator)
}

// RationalFromFloat quantizes a floating point refresh rate to
// round(x*10000) / 10000.
func RationalFromFloat(x float64) Rational {
	return Rational{Numerator: uint32(math.Round(x * 10000)), Denominator: 10000}
}

// DisplayMode pairs a resolution with a refresh rate.
type DisplayMode struct {
	Resolution  Resolution `json:"resolution"`
	RefreshRate Rational   `json:"refresh_rate"`
}

// HdrState is the on/off state of HDR output for a device.
type HdrState string

const (
	HdrStateDisabled HdrState = "Disabled"
	HdrStateEnabled  HdrState = "Enabled"
)

// DevicePrep is the activation policy requested for the target device.
type DevicePrep string

const (
	DevicePrepVerifyOnly       DevicePrep = "VerifyOnly"
	DevicePrepEnsureActive     DevicePrep = "EnsureActive"
	DevicePrepEnsurePrimary    DevicePrep = "EnsurePrimary"
	DevicePrepEnsureOnlyDisplay DevicePrep = "EnsureOnlyDisplay"
)

// TopologyGroup is a non-empty set of device ids sharing one source
// origin: size 1 is an extended display, size >=2 is a duplicate group.
type TopologyGroup []DeviceId

// ActiveTopology is an ordered list of topology groups. Order between
// groups, and within a group, is not significant for equality — compare
// with Equal, never with reflect.DeepEqual or ==.
type ActiveTopology []TopologyGroup

// Flatten returns the set of every device id appearing in the topology.
func (t ActiveTopology) Flatten() DeviceIdSet {
	out := make(DeviceIdSet, 0)
	for _, group := range t {
		for _, id := range group {
			out = append(out, id)
		}
	}
	return out
}

func sortedCopy(t ActiveTopology) ActiveTopology {
	out := make(ActiveTopology, len(t))
	for i, group := range t {
		g := make(TopologyGroup, len(group))
		copy(g, group)
		sort.Slice(g, func(a, b int) bool { return g[a] < g[b] })
		out[i] = g
	}
	sort.Slice(out, func(a, b int) bool {
		return groupKey(out[a]) < groupKey(out[b])
	})
	return out
}

func groupKey(g TopologyGroup) string {
	b, _ := json.Marshal(g)
	return string(b)
}

// Equal compares two topologies as sets of sets: order never matters.
func (t ActiveTopology) Equal(other ActiveTopology) bool {
	a, b := sortedCopy(t), sortedCopy(other)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

// DeviceIdSet is an order-insensitive collection of device ids, used for
// the persisted set of primary devices.
type DeviceIdSet []DeviceId

// Contains reports whether id is a member of the set.
func (s DeviceIdSet) Contains(id DeviceId) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Equal compares two sets ignoring order. Duplicates are not collapsed:
// an id listed twice in one set must also be listed twice in the other.
func (s DeviceIdSet) Equal(other DeviceIdSet) bool {
	if len(s) != len(other) {
		return false
	}
	a, b := append(DeviceIdSet{}, s...), append(DeviceIdSet{}, other...)
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MarshalJSON serializes the set as a sorted array for a deterministic
// persisted representation.
func (s DeviceIdSet) MarshalJSON() ([]byte, error) {
	cp := append(DeviceIdSet{}, s...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	if cp == nil {
		cp = DeviceIdSet{}
	}
	return json.Marshal([]DeviceId(cp))
}

// DeviceDisplayModeMap maps a device id to the mode it should run.
// Duplicates within one topology group must share the same resolution.
type DeviceDisplayModeMap map[DeviceId]DisplayMode

// HdrStateMap maps a device id to its HDR state. A nil value means the
// device is active but does not support HDR; such entries must be
// silently ignored by any write path.
type HdrStateMap map[DeviceId]*HdrState

// Point is a signed 2D coordinate, used for source mode origins.
type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// DeviceInfo is the live state of an active device, as reported by
// enumeration.
type DeviceInfo struct {
	Resolution  Resolution `json:"resolution"`
	Scale       Rational   `json:"scale"`
	RefreshRate Rational   `json:"refresh_rate"`
	Primary     bool       `json:"primary"`
	Origin      Point      `json:"origin"`
	HdrState    *HdrState  `json:"hdr_state"`
}

// EnumeratedDevice describes one display known to the driver, active or
// not. Info is nil iff the device is currently inactive.
type EnumeratedDevice struct {
	DeviceId     DeviceId     `json:"device_id"`
	DisplayName  DisplayName  `json:"display_name"`
	FriendlyName string       `json:"friendly_name"`
	Edid         []byte       `json:"edid"`
	Info         *DeviceInfo  `json:"info"`
}

// RefreshRateRequest accepts either a {numerator,denominator} object or a
// bare floating point number from JSON, quantizing the latter via
// RationalFromFloat.
type RefreshRateRequest Rational

// UnmarshalJSON implements the Rational|f64|null union described by the
// wire format.
func (r *RefreshRateRequest) UnmarshalJSON(data []byte) error {
	var asRational Rational
	if err := json.Unmarshal(data, &asRational); err == nil && asRational.Denominator != 0 {
		*r = RefreshRateRequest(asRational)
		return nil
	}
	var asFloat float64
	if err := json.Unmarshal(data, &asFloat); err != nil {
		return err
	}
	*r = RefreshRateRequest(RationalFromFloat(asFloat))
	return nil
}

// MarshalJSON always emits the {numerator,denominator} object form.
func (r RefreshRateRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(Rational(r))
}

// SingleDisplayConfiguration is the request accepted by
// SettingsManager.Apply.
type SingleDisplayConfiguration struct {
	DeviceId    DeviceId            `json:"device_id,omitempty"`
	DevicePrep  DevicePrep          `json:"device_prep"`
	Resolution  *Resolution         `json:"resolution,omitempty"`
	RefreshRate *RefreshRateRequest `json:"refresh_rate,omitempty"`
	HdrState    *HdrState           `json:"hdr_state,omitempty"`
}

// RefreshRateRational returns the requested refresh rate as a plain
// Rational, or nil if none was requested.
func (c SingleDisplayConfiguration) RefreshRateRational() *Rational {
	if c.RefreshRate == nil {
		return nil
	}
	r := Rational(*c.RefreshRate)
	return &r
}

// Initial is the frozen pre-modification baseline, preserved verbatim
// across re-applies until a successful revert or reset-persistence.
type Initial struct {
	Topology       ActiveTopology `json:"topology"`
	PrimaryDevices DeviceIdSet    `json:"primary_devices"`
}

// Equal compares two Initial snapshots ignoring topology/set ordering.
func (i Initial) Equal(other Initial) bool {
	return i.Topology.Equal(other.Topology) && i.PrimaryDevices.Equal(other.PrimaryDevices)
}

// Modified is the most recently recorded inverse of applied changes:
// what Revert undoes.
type Modified struct {
	Topology              ActiveTopology       `json:"topology"`
	OriginalModes         DeviceDisplayModeMap `json:"original_modes,omitempty"`
	OriginalHdrStates     HdrStateMap          `json:"original_hdr_states,omitempty"`
	OriginalPrimaryDevice DeviceId             `json:"original_primary_device,omitempty"`
}

// HasModifications reports whether any of the original_* fields are
// populated, i.e. whether anything besides topology was changed.
func (m Modified) HasModifications() bool {
	return len(m.OriginalModes) > 0 || len(m.OriginalHdrStates) > 0 || m.OriginalPrimaryDevice != ""
}

// TopologyOnly returns a copy of m with only the topology retained, used
// when persisting state mid-revert (cleared_data.modified =
// {modified.topology}).
func (m Modified) TopologyOnly() Modified {
	return Modified{Topology: m.Topology}
}

// SingleDisplayConfigState is the persisted snapshot backing
// PersistentState: the pre-modification baseline plus the most recent
// inverse of applied changes.
type SingleDisplayConfigState struct {
	Initial  Initial  `json:"initial"`
	Modified Modified `json:"modified"`
}

// Equal compares two states for the persist-equality short circuit.
func (s SingleDisplayConfigState) Equal(other SingleDisplayConfigState) bool {
	if !s.Initial.Equal(other.Initial) {
		return false
	}
	if !s.Modified.Topology.Equal(other.Modified.Topology) {
		return false
	}
	if len(s.Modified.OriginalModes) != len(other.Modified.OriginalModes) {
		return false
	}
	for id, mode := range s.Modified.OriginalModes {
		if other.Modified.OriginalModes[id] != mode {
			return false
		}
	}
	if len(s.Modified.OriginalHdrStates) != len(other.Modified.OriginalHdrStates) {
		return false
	}
	for id, state := range s.Modified.OriginalHdrStates {
		os, ok := other.Modified.OriginalHdrStates[id]
		if !ok {
			return false
		}
		if (state == nil) != (os == nil) {
			return false
		}
		if state != nil && *state != *os {
			return false
		}
	}
	return s.Modified.OriginalPrimaryDevice == other.Modified.OriginalPrimaryDevice
}

// WinWorkarounds configures OS-quirk compensations. A nil HdrBlankDelayMillis
// disables the HDR-blank workaround entirely.
type WinWorkarounds struct {
	HdrBlankDelayMillis *uint64 `json:"hdr_blank_delay"`
}

// ApplyResult enumerates every outcome SettingsManager.Apply can return.
type ApplyResult int

const (
	ApplyOk ApplyResult = iota
	ApplyApiTemporarilyUnavailable
	ApplyDevicePrepFailed
	ApplyPrimaryDevicePrepFailed
	ApplyDisplayModePrepFailed
	ApplyHdrStatePrepFailed
	ApplyPersistenceSaveFailed
)

func (r ApplyResult) String() string {
	switch r {
	case ApplyOk:
		return "Ok"
	case ApplyApiTemporarilyUnavailable:
		return "ApiTemporarilyUnavailable"
	case ApplyDevicePrepFailed:
		return "DevicePrepFailed"
	case ApplyPrimaryDevicePrepFailed:
		return "PrimaryDevicePrepFailed"
	case ApplyDisplayModePrepFailed:
		return "DisplayModePrepFailed"
	case ApplyHdrStatePrepFailed:
		return "HdrStatePrepFailed"
	case ApplyPersistenceSaveFailed:
		return "PersistenceSaveFailed"
	default:
		return "Unknown"
	}
}

// RevertResult enumerates every outcome SettingsManager.Revert can
// return.
type RevertResult int

const (
	RevertOk RevertResult = iota
	RevertApiTemporarilyUnavailable
	RevertTopologyIsInvalid
	RevertSwitchingTopologyFailed
	RevertRevertingHdrStatesFailed
	RevertRevertingDisplayModesFailed
	RevertRevertingPrimaryDeviceFailed
	RevertPersistenceSaveFailed
)

func (r RevertResult) String() string {
	switch r {
	case RevertOk:
		return "Ok"
	case RevertApiTemporarilyUnavailable:
		return "ApiTemporarilyUnavailable"
	case RevertTopologyIsInvalid:
		return "TopologyIsInvalid"
	case RevertSwitchingTopologyFailed:
		return "SwitchingTopologyFailed"
	case RevertRevertingHdrStatesFailed:
		return "RevertingHdrStatesFailed"
	case RevertRevertingDisplayModesFailed:
		return "RevertingDisplayModesFailed"
	case RevertRevertingPrimaryDeviceFailed:
		return "RevertingPrimaryDeviceFailed"
	case RevertPersistenceSaveFailed:
		return "PersistenceSaveFailed"
	default:
		return "Unknown"
	}
}
