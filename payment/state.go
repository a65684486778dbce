package payment

import (
	"time"

	"github.com/vitwit/jpycpay/types"
)

// State is a payment controller state.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateSubmitting           State = "submitting"
	StateAwaitingOnChain      State = "awaiting_on_chain"
	StateSucceeded            State = "succeeded"
	StateFailed               State = "failed"
)

// Valid state transitions: from -> []to
var ValidTransitions = map[State][]State{
	StateIdle:                 {StateAwaitingConfirmation},
	StateAwaitingConfirmation: {StateSubmitting, StateIdle},
	StateSubmitting:           {StateAwaitingOnChain, StateFailed},
	StateAwaitingOnChain:      {StateSucceeded, StateFailed},
	StateSucceeded:            {StateIdle},
	StateFailed:               {StateIdle, StateAwaitingConfirmation},
}

func IsValidTransition(from, to State) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// InFlight reports whether a transfer has been handed to the wallet and not
// yet resolved.
func (s State) InFlight() bool {
	return s == StateSubmitting || s == StateAwaitingOnChain
}

// Terminal reports whether the attempt has ended.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Phase is the user-facing sub-phase of an in-flight payment.
func (s State) Phase() string {
	switch s {
	case StateSubmitting:
		return "awaiting wallet approval"
	case StateAwaitingOnChain:
		return "awaiting network confirmation"
	default:
		return ""
	}
}

// Transition describes one state change of a controller.
type Transition struct {
	From   State
	To     State
	At     time.Time
	Token  types.TokenLabel
	Intent *types.PaymentIntent
	TxHash string
	Err    error
}

// Observer is notified synchronously, in order, after every transition.
type Observer interface {
	OnTransition(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

func (f ObserverFunc) OnTransition(t Transition) {
	f(t)
}
