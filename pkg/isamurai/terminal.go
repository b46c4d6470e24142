package isamurai

// TerminalStates lists the status strings that end a wait. Matching is
// exact; anything not listed keeps the watcher polling.
type TerminalStates struct {
	Success []State
	Failure []State
}

// DefaultTerminalStates accepts every spelling the API has been seen to
// use across the single and multi swap endpoints.
func DefaultTerminalStates() TerminalStates {
	return TerminalStates{
		Success: []State{StateDone, StateComplete},
		Failure: []State{StateFailed, StateFailedLow, StateCancelled},
	}
}

// Classify returns OutcomeSucceeded, OutcomeFailed or OutcomePolling.
func (t TerminalStates) Classify(s State) Outcome {
	for _, v := range t.Success {
		if v == s {
			return OutcomeSucceeded
		}
	}
	for _, v := range t.Failure {
		if v == s {
			return OutcomeFailed
		}
	}
	return OutcomePolling
}

func (t TerminalStates) empty() bool {
	return len(t.Success) == 0 && len(t.Failure) == 0
}
