package workflow

// State represents a candidate's position in the review lifecycle
type State string

const (
	StateSuggested      State = "SUGGESTED"
	StateAutoApproved   State = "AUTO_APPROVED"
	StateManualApproved State = "MANUAL_APPROVED"
	StateRejected       State = "REJECTED"
	StateDeferred       State = "DEFERRED"
)

var validStates = map[State]bool{
	StateSuggested:      true,
	StateAutoApproved:   true,
	StateManualApproved: true,
	StateRejected:       true,
	StateDeferred:       true,
}

// A candidate receives at most one decision per run, so every outcome is terminal.
var terminalStates = map[State]bool{
	StateAutoApproved:   true,
	StateManualApproved: true,
	StateRejected:       true,
	StateDeferred:       true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsApproved returns true for both approval outcomes
func (s State) IsApproved() bool {
	return s == StateAutoApproved || s == StateManualApproved
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
