package wizard

import "fmt"

// Step is one of the three wizard screens.
type Step int

const (
	// StepAwaitingCode waits for an access code.
	StepAwaitingCode Step = iota + 1
	// StepAwaitingUpload waits for a photo, styling options and submission.
	StepAwaitingUpload
	// StepResultReady shows the generated portrait.
	StepResultReady
)

func (s Step) String() string {
	switch s {
	case StepAwaitingCode:
		return "awaiting-code"
	case StepAwaitingUpload:
		return "awaiting-upload"
	case StepResultReady:
		return "result-ready"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Event triggers a step transition.
type Event string

const (
	EventVerified  Event = "verified"
	EventGenerated Event = "generated"
	EventAgain     Event = "again"
	EventBack      Event = "back"
	EventExhausted Event = "exhausted"
)

var transitions = map[Step]map[Event]Step{
	StepAwaitingCode: {
		EventVerified: StepAwaitingUpload,
	},
	StepAwaitingUpload: {
		EventGenerated: StepResultReady,
		EventBack:      StepAwaitingCode,
		EventExhausted: StepAwaitingCode,
	},
	StepResultReady: {
		EventAgain: StepAwaitingUpload,
		EventBack:  StepAwaitingCode,
	},
}

// Next returns the step reached from `from` on ev, or ErrInvalidTransition.
func Next(from Step, ev Event) (Step, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
}
