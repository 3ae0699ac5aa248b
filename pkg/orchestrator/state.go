package orchestrator

// State is a step of one generation attempt.
//
//	NotEligible
//	Eligible → Allocating → Rendering → Persisting → Generated
//	                  ↘           ↘            ↘
//	                              Failed
//
// Eligible also short-circuits to Generated when a certificate already
// exists. Failed is terminal for the attempt; calling Generate again
// starts over from Eligible.
type State string

const (
	StateNotEligible State = "not_eligible"
	StateEligible    State = "eligible"
	StateAllocating  State = "allocating"
	StateRendering   State = "rendering"
	StatePersisting  State = "persisting"
	StateGenerated   State = "generated"
	StateFailed      State = "failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateNotEligible, StateGenerated, StateFailed:
		return true
	}
	return false
}

var transitions = map[State][]State{
	StateEligible:   {StateAllocating, StateGenerated, StateFailed},
	StateAllocating: {StateRendering, StateGenerated, StateFailed},
	StateRendering:  {StatePersisting, StateFailed},
	StatePersisting: {StateGenerated, StateFailed},
}

// CanTransition reports whether to may follow from.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
