package analysis

// Evaluation states reported per condition.
const (
	StateQueued   = "Queued"
	StateRunning  = "Running"
	StateComplete = "Complete"
	StateCanceled = "Canceled"
	StateError    = "Error"
)

// EvalStatus is the progress of one condition's evaluation.
type EvalStatus struct {
	ID       int    `json:"ID"`
	State    string `json:"State"`
	Progress int    `json:"Progress"`
	Error    string `json:"Error"`
}

// Status is one complete snapshot, one entry per condition. A newer
// snapshot replaces the previous one.
type Status []EvalStatus

// Clone returns an independent copy.
func (s Status) Clone() Status {
	if s == nil {
		return nil
	}
	return append(Status{}, s...)
}

// Done reports whether every entry reached a terminal state.
func (s Status) Done() bool {
	for _, st := range s {
		switch st.State {
		case StateComplete, StateCanceled, StateError:
		default:
			return false
		}
	}
	return len(s) > 0
}
