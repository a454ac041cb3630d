package pipeline

type State int

const (
	StateIdle State = iota
	StateLocating
	StateReading
	StateTransforming
	StateWriting
	StateDone
	StateNoInput
	StateFailed
)

func (obj State) String() string {
	switch obj {
	case StateIdle:
		return "idle"
	case StateLocating:
		return "locating"
	case StateReading:
		return "reading"
	case StateTransforming:
		return "transforming"
	case StateWriting:
		return "writing"
	case StateDone:
		return "done"
	case StateNoInput:
		return "no-input"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (obj State) Terminal() bool {
	return obj == StateDone || obj == StateNoInput || obj == StateFailed
}

var transitions = map[State][]State{
	StateIdle:         {StateLocating},
	StateLocating:     {StateReading, StateNoInput, StateFailed},
	StateReading:      {StateTransforming, StateWriting, StateDone, StateFailed},
	StateTransforming: {StateWriting, StateFailed},
	StateWriting:      {StateReading, StateDone, StateFailed},
	StateDone:         {StateIdle},
	StateNoInput:      {StateIdle},
	StateFailed:       {StateIdle},
}

func (obj State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[obj] {
		if allowed == next {
			return true
		}
	}
	return false
}
