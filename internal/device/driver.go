// Package device implements the DisplayDriver port: the boundary
// between the settings-transaction engine and the Windows CCD API.
package device

import "displayswitchd/internal/types"

// Driver is the DisplayDriver port. All operations are synchronous and
// fail with a plain error on the underlying OS call failing; "not
// found" conditions return empty containers rather than an error,
// matching the distinction the rest of the engine relies on.
type Driver interface {
	// IsApiAccessAvailable probes the CCD API with a cheap no-op call.
	IsApiAccessAvailable() bool

	// Enumerate lists every display the driver currently knows about,
	// active or not.
	Enumerate() ([]types.EnumeratedDevice, error)

	// DisplayName returns the OS-assigned logical name of id, or "" if
	// inactive or unknown.
	DisplayName(id types.DeviceId) types.DisplayName

	CurrentTopology() (types.ActiveTopology, error)
	IsTopologyValid(topology types.ActiveTopology) bool
	IsTopologySame(a, b types.ActiveTopology) bool
	SetTopology(topology types.ActiveTopology) error

	CurrentDisplayModes(ids types.DeviceIdSet) (types.DeviceDisplayModeMap, error)
	SetDisplayModes(modes types.DeviceDisplayModeMap) error

	IsPrimary(id types.DeviceId) (bool, error)
	SetAsPrimary(id types.DeviceId) error

	CurrentHdrStates(ids types.DeviceIdSet) (types.HdrStateMap, error)
	SetHdrStates(states types.HdrStateMap) error
}
