package model

import "fmt"

// SubscriptionEvent is a lifecycle event applied to a subscription.
type SubscriptionEvent string

const (
	// EventAuthorized is the first successful create response or the first
	// async notification with a recognized success code.
	EventAuthorized   SubscriptionEvent = "authorized"
	EventCreateFailed SubscriptionEvent = "create_failed"
	EventSuspend      SubscriptionEvent = "suspend"
	EventRestart      SubscriptionEvent = "restart"
	EventTerminate    SubscriptionEvent = "terminate"
	// EventComplete fires when the charged period count reaches the total
	// authorized count of a finite plan.
	EventComplete SubscriptionEvent = "complete"
)

// StateTransitionError is a locally rejected transition. It is raised before
// any gateway call is issued and leaves the stored status untouched.
type StateTransitionError struct {
	From  SubscriptionStatus
	Event SubscriptionEvent
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal subscription transition: %s event on %s subscription", e.Event, e.From)
}

// transitions is the full set of legal (status, event) pairs. Anything not
// listed fails closed.
var transitions = map[SubscriptionStatus]map[SubscriptionEvent]SubscriptionStatus{
	SubscriptionStatusPending: {
		EventAuthorized:   SubscriptionStatusActive,
		EventCreateFailed: SubscriptionStatusTerminated,
	},
	SubscriptionStatusActive: {
		EventSuspend:   SubscriptionStatusSuspended,
		EventTerminate: SubscriptionStatusTerminated,
		EventComplete:  SubscriptionStatusCompleted,
	},
	SubscriptionStatusSuspended: {
		EventRestart:   SubscriptionStatusActive,
		EventTerminate: SubscriptionStatusTerminated,
	},
}

// NextStatus returns the status that event moves from into, or a
// *StateTransitionError when the pair is not a legal transition.
func NextStatus(from SubscriptionStatus, event SubscriptionEvent) (SubscriptionStatus, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return from, &StateTransitionError{From: from, Event: event}
}

// CanTransition reports whether event is legal from the given status.
func CanTransition(from SubscriptionStatus, event SubscriptionEvent) bool {
	_, ok := transitions[from][event]
	return ok
}
