// Package guard implements the scoped, disarmable compensating actions
// used by the settings manager to unwind a partially applied change.
// It is the Go equivalent of a one-shot scope_exit: construct it with
// defer, arm it once the snapshot to restore is known, and disarm it on
// every success path.
package guard

import "sync"

type state int

const (
	stateDisarmed state = iota
	stateArmed
	stateExecuting
)

// Guard is a single-shot deferred compensating action. The zero value is
// a disarmed guard with no action; call Arm to give it one.
//
// Guards are not safe for concurrent use by multiple goroutines; the
// settings manager only ever touches a guard from the goroutine running
// Apply or Revert.
type Guard struct {
	mu     sync.Mutex
	state  state
	action func() error
	onFail func(error)
}

// New returns an armed guard that will run action on Run, unless
// disarmed first. onFail, if non-nil, receives the error from action
// when it fails; guard failures are logged, never propagated, per the
// original design (cleanup is best-effort once a failure already
// occurred).
func New(action func() error, onFail func(error)) *Guard {
	return &Guard{state: stateArmed, action: action, onFail: onFail}
}

// Disarmed returns a guard with no pending action.
func Disarmed() *Guard {
	return &Guard{state: stateDisarmed}
}

// Arm (re)arms the guard with a new action, replacing any previous one.
// This supports the lazy-arming pattern used throughout apply/revert,
// where the guard is declared before the snapshot to restore is known.
func (g *Guard) Arm(action func() error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.action = action
	g.state = stateArmed
}

// Disarm marks the guard as a no-op. Safe to call on an already
// disarmed or executing guard.
func (g *Guard) Disarm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == stateArmed {
		g.state = stateDisarmed
	}
}

// Armed reports whether the guard currently has a pending action.
func (g *Guard) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == stateArmed
}

// Run executes the guard's action exactly once, iff it is armed. Meant
// to be called via defer at the point the guard was declared. A guard
// that is already disarmed or mid-execution is a no-op.
func (g *Guard) Run() {
	g.mu.Lock()
	if g.state != stateArmed {
		g.mu.Unlock()
		return
	}
	g.state = stateExecuting
	action := g.action
	g.mu.Unlock()

	if action == nil {
		return
	}
	if err := action(); err != nil && g.onFail != nil {
		g.onFail(err)
	}
}
