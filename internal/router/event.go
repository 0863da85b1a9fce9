package router

import (
	"github.com/roach88/enrichcall/internal/callreg"
	"github.com/roach88/enrichcall/internal/composer"
)

// Kind distinguishes routed events.
type Kind int

const (
	// KindIncomingContent carries content pushed by the RCS service.
	KindIncomingContent Kind = iota + 1
	// KindStateUpdate carries a content state change for a number.
	KindStateUpdate
	// KindCallArrived carries a call newly added to the registry.
	KindCallArrived
	// KindServiceConnected reports that the RCS service (re)connected.
	KindServiceConnected

	// kindBarrier is posted by Drain and never reaches the correlator.
	kindBarrier
)

func (k Kind) String() string {
	switch k {
	case KindIncomingContent:
		return "content"
	case KindStateUpdate:
		return "state"
	case KindCallArrived:
		return "call"
	case KindServiceConnected:
		return "connected"
	case kindBarrier:
		return "barrier"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the Run loop.
//
// Seq and Flow are stamped at dispatch; a producer may preset Flow to
// group related events.
type Event struct {
	Kind Kind
	Seq  int64
	Flow string

	Record      *composer.Record // KindIncomingContent
	PhoneNumber string           // KindStateUpdate
	State       composer.State   // KindStateUpdate
	Call        callreg.Call     // KindCallArrived

	done chan struct{} // kindBarrier
}

// ContentEvent wraps pushed content.
func ContentEvent(rec *composer.Record) Event {
	return Event{Kind: KindIncomingContent, Record: rec}
}

// StateEvent wraps a state update.
func StateEvent(phoneNumber string, state composer.State) Event {
	return Event{Kind: KindStateUpdate, PhoneNumber: phoneNumber, State: state}
}

// CallEvent wraps a call arrival.
func CallEvent(call callreg.Call) Event {
	return Event{Kind: KindCallArrived, Call: call}
}

// ConnectedEvent reports a service connection.
func ConnectedEvent() Event {
	return Event{Kind: KindServiceConnected}
}

// Number returns the phone number an event refers to, if any.
func (e Event) Number() string {
	switch e.Kind {
	case KindIncomingContent:
		if e.Record != nil {
			return e.Record.PhoneNumber
		}
	case KindStateUpdate:
		return e.PhoneNumber
	case KindCallArrived:
		if e.Call != nil {
			return e.Call.PhoneNumber()
		}
	}
	return ""
}
