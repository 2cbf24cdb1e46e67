package signal

import (
	"github.com/Reverse-Call-Center/call-signal/dialer"
	"github.com/Reverse-Call-Center/call-signal/haptics"
	"github.com/Reverse-Call-Center/call-signal/types"
)

const (
	ActionAccept = "accept"
	ActionReject = "reject"

	DefaultNumber = "+1234567890"
)

type EventKind int

const (
	EventSimulate EventKind = iota
	EventResolve
)

type Event struct {
	Kind   EventKind
	CallID string
	Number string
	Action string
}

func Simulate(callID, number string) Event {
	return Event{Kind: EventSimulate, CallID: callID, Number: number}
}

func Resolve(action string) Event {
	return Event{Kind: EventResolve, Action: action}
}

type EffectKind int

const (
	// EffectCommit marks where the new session replaces the current one.
	EffectCommit EffectKind = iota
	EffectDial
	EffectStartVibration
	EffectCancelVibration
)

func (k EffectKind) String() string {
	switch k {
	case EffectCommit:
		return "commit"
	case EffectDial:
		return "dial"
	case EffectStartVibration:
		return "start_vibration"
	case EffectCancelVibration:
		return "cancel_vibration"
	}
	return "unknown"
}

type Effect struct {
	Kind    EffectKind
	URI     string
	Pattern haptics.Pattern
	Repeat  bool
}

// Policy holds the fixed inputs of the transition function.
type Policy struct {
	DefaultNumber string
	Pattern       haptics.Pattern
}

// Next computes the session that follows cur on ev, together with the ordered
// side effects to execute. It does not touch any device.
func (p Policy) Next(cur types.CallSession, ev Event) (types.CallSession, []Effect) {
	switch ev.Kind {
	case EventSimulate:
		number := ev.Number
		if number == "" {
			number = p.defaultNumber()
		}
		next := types.CallSession{
			ID:        ev.CallID,
			Number:    number,
			IsVisible: true,
			IsActive:  true,
		}
		return next, []Effect{
			{Kind: EffectCommit},
			{Kind: EffectStartVibration, Pattern: p.Pattern, Repeat: true},
		}

	case EventResolve:
		var effects []Effect
		if ev.Action == ActionAccept && cur.IsVisible && cur.HasNumber() {
			effects = append(effects, Effect{Kind: EffectDial, URI: dialer.TelURI(cur.Number)})
		}
		effects = append(effects, Effect{Kind: EffectCancelVibration}, Effect{Kind: EffectCommit})

		// isActive is left as it was; only a new simulated call resets it.
		next := cur
		next.IsVisible = false
		return next, effects
	}
	return cur, nil
}

func (p Policy) defaultNumber() string {
	if p.DefaultNumber == "" {
		return DefaultNumber
	}
	return p.DefaultNumber
}
