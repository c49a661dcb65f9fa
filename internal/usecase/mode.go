package usecase

import "time"

// Mode describes an invocation of the reconciler. Budgets are cooperative:
// elapsed time is polled only between records.
type Mode struct {
	Name             string
	Budget           time.Duration
	AutoContinue     bool // request a follow-up run when the budget expires
	IgnoreCheckpoint bool // force the cold-start window
}

var (
	// ModeWatch is the scheduled trigger.
	ModeWatch = Mode{Name: "watch", Budget: 4 * time.Minute, AutoContinue: true}

	// ModeComplete is the manual auto-continuing run.
	ModeComplete = Mode{Name: "complete", Budget: 5*time.Minute + 30*time.Second, AutoContinue: true}

	// ModeTimeout is the manual stop-and-wait run; a human re-invokes.
	ModeTimeout = Mode{Name: "timeout", Budget: time.Minute}

	// ModeInitial ignores the checkpoint and backfills the cold-start
	// window. It shares the complete budget.
	ModeInitial = Mode{Name: "initial", Budget: 5*time.Minute + 30*time.Second, AutoContinue: true, IgnoreCheckpoint: true}
)

// ModeByName resolves an invocation mode from its trigger name.
func ModeByName(name string) (Mode, bool) {
	switch name {
	case ModeWatch.Name:
		return ModeWatch, true
	case ModeComplete.Name:
		return ModeComplete, true
	case ModeTimeout.Name:
		return ModeTimeout, true
	case ModeInitial.Name:
		return ModeInitial, true
	}
	return Mode{}, false
}
