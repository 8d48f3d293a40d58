package des

import "time"

// Termination identifies why a Simulate run ended.
type Termination int

const (
	// TerminationUnset is the zero value; never observed on a returned
	// Report.
	TerminationUnset Termination = iota

	// TerminationEmpty means the event queue drained with no pending
	// requests before the horizon was reached — a normal, quiet exit.
	TerminationEmpty

	// TerminationDone means the next scheduled event lies at or beyond the
	// horizon.
	TerminationDone

	// TerminationIdle means the Watchdog detected that virtual time stopped advancing while work was still
	// outstanding.
	TerminationIdle

	// TerminationFinished means Simulate reached its horizon and forcibly
	// interrupted every client still suspended.
	TerminationFinished
)

// String implements fmt.Stringer.
func (t Termination) String() string {
	switch t {
	case TerminationEmpty:
		return "EMPTY"
	case TerminationDone:
		return "DONE"
	case TerminationIdle:
		return "IDLE"
	case TerminationFinished:
		return "FINISHED"
	default:
		return "UNSET"
	}
}

// Report summarizes a completed Simulate call.
type Report struct {
	Termination  Termination
	FinalTime    float64
	Duration     time.Duration
	EventsPopped int
}
