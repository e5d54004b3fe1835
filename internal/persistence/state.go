package persistence

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"displayswitchd/internal/types"
)

// PersistentState eagerly loads and caches the persisted
// SingleDisplayConfigState, and serializes every subsequent write
// through the underlying SettingsPersistence port. The cache is kept in
// sync with the backing store: after any successful Persist call,
// State() returns exactly what a fresh Load would parse.
type PersistentState struct {
	api   SettingsPersistence
	log   *zap.SugaredLogger
	cache *types.SingleDisplayConfigState
}

// New constructs a PersistentState over api (a nil api defaults to
// NoopSettingsPersistence). In strict mode, a load or parse failure
// returns an error instead of falling back to an empty cache; lenient
// mode logs and continues with no cached state, matching the two
// construction modes the original exposes (its library entry point is
// strict, other callers are lenient).
func New(api SettingsPersistence, log *zap.SugaredLogger, strict bool) (*PersistentState, error) {
	if api == nil {
		api = NoopSettingsPersistence{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	ps := &PersistentState{api: api, log: log}

	data, ok := api.Load()
	if !ok {
		if strict {
			return nil, errLoadFailed
		}
		log.Errorw("failed to load persistent settings, continuing with no cached state")
		return ps, nil
	}
	if len(data) == 0 {
		return ps, nil
	}

	var state types.SingleDisplayConfigState
	if err := json.Unmarshal(data, &state); err != nil {
		wrapped := fmt.Errorf("failed to parse persistent settings: %w", err)
		if strict {
			return nil, wrapped
		}
		log.Errorw("failed to parse persistent settings", "error", err)
		return ps, nil
	}

	ps.cache = &state
	return ps, nil
}

// State returns the cached state, or nil if nothing is currently
// persisted.
func (p *PersistentState) State() *types.SingleDisplayConfigState {
	return p.cache
}

// Persist writes state as the new persisted snapshot. A nil state
// clears the backing store. Short-circuits (no write, returns true) if
// state already equals the cached value.
func (p *PersistentState) Persist(state *types.SingleDisplayConfigState) bool {
	if stateEqual(p.cache, state) {
		return true
	}

	if state == nil {
		if !p.api.Clear() {
			return false
		}
		p.cache = nil
		return true
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		p.log.Errorw("failed to serialize new persistent state", "error", err)
		return false
	}
	if !p.api.Store(data) {
		return false
	}

	cached := *state
	p.cache = &cached
	return true
}

func stateEqual(a, b *types.SingleDisplayConfigState) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
