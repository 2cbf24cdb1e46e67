package handlers

import (
	"context"
	"time"

	"github.com/Reverse-Call-Center/call-signal/session"
	"github.com/Reverse-Call-Center/call-signal/signal"
	"github.com/Reverse-Call-Center/call-signal/types"
	"github.com/sirupsen/logrus"
)

// Presenter is the part of the controller an inbound dialog drives.
type Presenter interface {
	SimulateCall(number ...string) types.CallSession
	Session() types.CallSession
	OnSessionChanged(l signal.Listener) func()
}

// RingingDialog is the SIP side of an inbound call.
type RingingDialog interface {
	Trying() error
	Ringing() error
	Hangup(ctx context.Context) error
}

// HandleIncomingCall presents the caller on the controller and keeps the
// dialog ringing until the presented call is resolved, replaced or ctx ends.
// It returns the session the dialog ended on.
func HandleIncomingCall(ctx context.Context, dialog RingingDialog, callerID string, p Presenter, log *logrus.Entry) types.CallSession {
	// Notifications only wake the loop; the live session is read each time,
	// so coalesced or earlier commits cannot be mistaken for this call's.
	wake := make(chan struct{}, 1)
	unsubscribe := p.OnSessionChanged(signal.ListenerFunc(func(types.CallSession) {
		select {
		case wake <- struct{}{}:
		default:
		}
	}))
	defer unsubscribe()

	if err := dialog.Trying(); err != nil {
		log.WithError(err).Warn("Error sending Trying")
	}
	if err := dialog.Ringing(); err != nil {
		log.WithError(err).Warn("Error sending Ringing")
	}

	current := p.SimulateCall(callerID)
	callID := current.ID

	session.RegisterCall(&session.InboundCall{ID: callID, CallerID: callerID, StartTime: time.Now()})
	defer session.UnregisterCall(callID)

	log = log.WithField("call_id", callID)
	log.WithField("ringing", session.GetActiveCallCount()).Info("Inbound call ringing")

	for current.ID == callID && current.IsVisible {
		select {
		case <-wake:
			current = p.Session()
		case <-ctx.Done():
			log.WithField("rang", ringTime(callID)).Info("Inbound call cancelled while ringing")
			hangup(dialog, log)
			return current
		}
	}

	log = log.WithField("rang", ringTime(callID))
	if current.ID != callID {
		log.Info("Inbound call superseded by a newer call")
	} else {
		log.Info("Inbound call resolved")
	}
	hangup(dialog, log)
	return current
}

func ringTime(callID string) time.Duration {
	call, ok := session.GetCall(callID)
	if !ok {
		return 0
	}
	return time.Since(call.StartTime).Round(time.Millisecond)
}

func hangup(dialog RingingDialog, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dialog.Hangup(ctx); err != nil {
		log.WithError(err).Debug("Error hanging up inbound dialog")
	}
}
