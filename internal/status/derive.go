// Package status derives the user-visible state of a target from its apply
// journal. No filesystem or process calls are made in this package.
package status

import "github.com/NielsdaWheelz/stencil/internal/journal"

// Derived state strings (user-visible contract).
const (
	StateNone        = "none"
	StateApplying    = "applying"
	StateInterrupted = "interrupted"
	StateFailed      = "failed"
	StateCompleted   = "completed"
	StateRolledBack  = "rolled back"
)

// Snapshot contains local inputs the caller gathers alongside the journal.
type Snapshot struct {
	// LockHeld is true iff a live process holds the target lock.
	LockHeld bool
}

// Derived is the computed state plus the command that moves it forward.
type Derived struct {
	State string

	// Next is a suggested follow-up command, empty when none applies.
	Next string
}

// Derive computes the display state. j may be nil when no journal exists.
// A journal still marked running without a live lock holder means the
// process died mid-run.
func Derive(j *journal.Journal, in Snapshot) Derived {
	if j == nil {
		return Derived{State: StateNone, Next: "stencil apply --recipe <recipe>"}
	}
	switch j.Status {
	case journal.RunRunning:
		if in.LockHeld {
			return Derived{State: StateApplying}
		}
		return Derived{State: StateInterrupted, Next: resumeOrRollback}
	case journal.RunFailed:
		return Derived{State: StateFailed, Next: resumeOrRollback}
	case journal.RunCompleted:
		return Derived{State: StateCompleted, Next: "stencil rollback"}
	case journal.RunRolledBack:
		return Derived{State: StateRolledBack}
	}
	return Derived{State: j.Status}
}

const resumeOrRollback = "stencil apply --resume --recipe <recipe>, or stencil rollback"
