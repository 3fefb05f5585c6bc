package conversation

// State is one phase of a live call.
type State string

const (
	StateIdle                 State = "idle"
	StateGreeting             State = "greeting"
	StateScripted             State = "scripted"
	StateListeningForResponse State = "listening_for_response"
	StateAnalyzing            State = "analyzing"
	StateResponding           State = "responding"
	StateTransferring         State = "transferring"
	StateEnding               State = "ending"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
)

// transitions is the complete set of legal state changes. Failed is reachable
// from every non-terminal state on channel error or hard timeout.
var transitions = map[State][]State{
	StateIdle:                 {StateGreeting, StateFailed},
	StateGreeting:             {StateScripted, StateFailed},
	StateScripted:             {StateListeningForResponse, StateFailed},
	StateListeningForResponse: {StateAnalyzing, StateFailed},
	StateAnalyzing:            {StateResponding, StateFailed},
	StateResponding:           {StateListeningForResponse, StateTransferring, StateEnding, StateFailed},
	StateTransferring:         {StateCompleted, StateFailed},
	StateEnding:               {StateCompleted, StateFailed},
	StateCompleted:            {},
	StateFailed:               {},
}

// CanTransition reports whether from → to is in the transition table.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a final state.
func Terminal(s State) bool {
	return s == StateCompleted || s == StateFailed
}
