package session

import "strings"

// FlowState tracks the two-step /schedule conversation.
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowAwaitingPrompt
	FlowAwaitingSchedule
)

func (s FlowState) String() string {
	switch s {
	case FlowAwaitingPrompt:
		return "awaiting_prompt"
	case FlowAwaitingSchedule:
		return "awaiting_schedule"
	default:
		return "idle"
	}
}

// Flow is the pending schedule held between messages.
type Flow struct {
	State  FlowState
	Prompt string
}

func (f Flow) Active() bool {
	return f.State != FlowIdle
}

type Outcome int

const (
	// OutcomePassThrough means the input is not part of a flow.
	OutcomePassThrough Outcome = iota
	OutcomeAskPrompt
	OutcomeAskSchedule
	// OutcomeReady carries a complete prompt and schedule phrase.
	OutcomeReady
	OutcomeCancelled
)

type Transition struct {
	Next    Flow
	Outcome Outcome
	Prompt  string
	When    string
}

// Begin starts a flow from /schedule. A prompt given with the command skips
// straight to asking for the schedule.
func Begin(prompt string) Transition {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Transition{Next: Flow{State: FlowAwaitingPrompt}, Outcome: OutcomeAskPrompt}
	}
	return Transition{
		Next:    Flow{State: FlowAwaitingSchedule, Prompt: prompt},
		Outcome: OutcomeAskSchedule,
	}
}

// Advance feeds one plain-text message into the flow.
func Advance(f Flow, input string) Transition {
	input = strings.TrimSpace(input)
	switch f.State {
	case FlowAwaitingPrompt:
		if input == "" {
			return Transition{Next: f, Outcome: OutcomeAskPrompt}
		}
		return Transition{
			Next:    Flow{State: FlowAwaitingSchedule, Prompt: input},
			Outcome: OutcomeAskSchedule,
		}
	case FlowAwaitingSchedule:
		if input == "" {
			return Transition{Next: f, Outcome: OutcomeAskSchedule}
		}
		return Transition{Next: Flow{}, Outcome: OutcomeReady, Prompt: f.Prompt, When: input}
	default:
		return Transition{Next: Flow{}, Outcome: OutcomePassThrough}
	}
}

func Cancel(f Flow) Transition {
	if !f.Active() {
		return Transition{Next: Flow{}, Outcome: OutcomePassThrough}
	}
	return Transition{Next: Flow{}, Outcome: OutcomeCancelled}
}
