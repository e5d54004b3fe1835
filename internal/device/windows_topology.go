//go:build windows

package device

import (
	"errors"
	"fmt"

	"displayswitchd/internal/ccd"
	"displayswitchd/internal/types"
)

// CurrentTopology groups the active paths by shared source origin:
// devices at the same (x,y) are a duplicate group.
func (d *WinDriver) CurrentTopology() (types.ActiveTopology, error) {
	data, err := snapshot(true)
	if err != nil {
		return nil, fmt.Errorf("failed to query active display configuration: %w", err)
	}

	positionIndex := map[types.Point]int{}
	var topology types.ActiveTopology
	for _, path := range data.PathInfoArray {
		did, _, err := pathDeviceId(path)
		if err != nil {
			d.log.Warnw("failed to resolve device id for active path", "error", err)
			continue
		}

		sourceMode := sourceModeForPath(path, data.ModeInfoArray)
		if sourceMode == nil {
			return nil, fmt.Errorf("active device %s has no source mode", did)
		}

		pos := types.Point{X: sourceMode.Position.X, Y: sourceMode.Position.Y}
		if idx, ok := positionIndex[pos]; ok {
			topology[idx] = append(topology[idx], did)
		} else {
			positionIndex[pos] = len(topology)
			topology = append(topology, types.TopologyGroup{did})
		}
	}
	return topology, nil
}

// IsTopologyValid enforces the OS's own limitation (groups of at most 2)
// plus the engine's invariant that a device id appears at most once.
func (d *WinDriver) IsTopologyValid(topology types.ActiveTopology) bool {
	if len(topology) == 0 {
		return false
	}
	seen := map[types.DeviceId]bool{}
	for _, group := range topology {
		if len(group) == 0 || len(group) > 2 {
			return false
		}
		for _, id := range group {
			if seen[id] {
				return false
			}
			seen[id] = true
		}
	}
	return true
}

// IsTopologySame compares two topologies as sets of sets.
func (d *WinDriver) IsTopologySame(a, b types.ActiveTopology) bool {
	return a.Equal(b)
}

// SetTopology assembles CCD paths for the requested topology and applies
// them. The supplied topology is tried first; if Windows rejects it with
// ERROR_GEN_FAILURE, a second attempt lets Windows adjust it
// (ALLOW_CHANGES). A post-write re-read verifies the result, to work
// around a known Windows bug with nearly-identical duplicated devices.
func (d *WinDriver) SetTopology(newTopology types.ActiveTopology) error {
	if !d.IsTopologyValid(newTopology) {
		return errors.New("requested topology is invalid")
	}

	current, err := d.CurrentTopology()
	if err != nil || !d.IsTopologyValid(current) {
		return fmt.Errorf("failed to read current topology: %w", err)
	}
	if d.IsTopologySame(current, newTopology) {
		d.log.Debugw("topology unchanged, skipping write")
		return nil
	}

	original, err := snapshot(false)
	if err != nil {
		return fmt.Errorf("failed to snapshot display configuration before topology change: %w", err)
	}

	paths, err := buildPathsForTopology(newTopology, original.PathInfoArray)
	if err != nil {
		return fmt.Errorf("failed to build paths for requested topology: %w", err)
	}

	flags := ccd.SdcFlagsApply | ccd.SdcFlagsTopologySupplied | ccd.SdcFlagsAllowPathOrderChanges
	err = ccd.SetDisplayConfig(paths, nil, flags)
	if isErrGenFailure(err) {
		d.log.Warnw("topology from Windows database rejected, asking Windows to create it instead")
		flags = ccd.SdcFlagsApply | ccd.SdcFlagsUseSuppliedDisplayConfig | ccd.SdcFlagsAllowChanges | ccd.SdcFlagsSaveToDatabase
		err = ccd.SetDisplayConfig(paths, nil, flags)
	}
	if err != nil {
		return fmt.Errorf("failed to set topology: %w", err)
	}

	updated, err := d.CurrentTopology()
	if err == nil && d.IsTopologyValid(updated) && d.IsTopologySame(newTopology, updated) {
		return nil
	}

	d.log.Errorw("failed to converge to requested topology, Windows may be defaulting to a remembered pairing for near-identical devices; reverting")
	restoreFlags := ccd.SdcFlagsApply | ccd.SdcFlagsUseSuppliedDisplayConfig | ccd.SdcFlagsSaveToDatabase
	_ = ccd.SetDisplayConfig(original.PathInfoArray, original.ModeInfoArray, restoreFlags)
	return errors.New("failed to converge to requested topology")
}

// buildPathsForTopology marks the subset of known paths whose device
// belongs to newTopology as active, and assigns a shared source id
// within each duplicate group so Windows treats them as clones of one
// source. Paths are left without mode indices: SDC_TOPOLOGY_SUPPLIED
// does not take an accompanying mode array, Windows negotiates modes
// for the newly active paths on its own.
func buildPathsForTopology(newTopology types.ActiveTopology, known []ccd.DisplayConfigPathInfo) ([]ccd.DisplayConfigPathInfo, error) {
	groupOf := map[types.DeviceId]int{}
	for gi, group := range newTopology {
		for _, id := range group {
			groupOf[id] = gi
		}
	}

	nextSourceId := map[ccd.LUID]uint32{}
	groupSourceId := map[int]uint32{}

	out := make([]ccd.DisplayConfigPathInfo, 0, len(known))
	for _, path := range known {
		did, _, err := pathDeviceId(path)
		if err != nil {
			continue
		}

		p := path
		p.SourceInfo.ModeInfoIdx = ccd.DisplayConfigPathModeIdxInvalid
		p.TargetInfo.ModeInfoIdx = ccd.DisplayConfigPathModeIdxInvalid

		if gi, wanted := groupOf[did]; wanted {
			p.Flags |= ccd.DisplayConfigPathActive
			if sid, assigned := groupSourceId[gi]; assigned {
				p.SourceInfo.Id = sid
			} else {
				sid := nextSourceId[p.SourceInfo.AdapterId]
				nextSourceId[p.SourceInfo.AdapterId] = sid + 1
				groupSourceId[gi] = sid
				p.SourceInfo.Id = sid
			}
		} else {
			p.Flags &^= ccd.DisplayConfigPathActive
		}

		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, errors.New("no known paths to build a topology from")
	}
	return out, nil
}

func isErrGenFailure(err error) bool {
	return errors.Is(err, ccd.ErrorGenFailure)
}
