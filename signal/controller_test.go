package signal

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Reverse-Call-Center/call-signal/haptics"
	"github.com/Reverse-Call-Center/call-signal/types"
	"gotest.tools/assert"
)

// trace records every side effect in the order it happens.
type trace struct {
	events  []string
	dialErr error
}

func (tr *trace) Vibrate(p haptics.Pattern, repeat bool) {
	tr.events = append(tr.events, fmt.Sprintf("vibrate:%d:%t", len(p), repeat))
}

func (tr *trace) Cancel() { tr.events = append(tr.events, "cancel") }

func (tr *trace) Dial(uri string) error {
	tr.events = append(tr.events, "dial:"+uri)
	return tr.dialErr
}

func (tr *trace) dials() []string {
	var out []string
	for _, e := range tr.events {
		if len(e) > 5 && e[:5] == "dial:" {
			out = append(out, e[5:])
		}
	}
	return out
}

func newTestController(tr *trace) *Controller {
	n := 0
	return NewController(tr, tr,
		WithPolicy(Policy{Pattern: testPattern}),
		WithCallIDs(func() string {
			n++
			return fmt.Sprintf("call_%d", n)
		}),
	)
}

func TestControllerInitialState(t *testing.T) {
	c := newTestController(&trace{})

	number, ok := c.IncomingNumber()
	assert.Assert(t, !ok)
	assert.Equal(t, number, "")
	assert.Assert(t, !c.IsCallScreenVisible())
	assert.Assert(t, !c.IsCallActive())
}

func TestControllerSimulateSetsSession(t *testing.T) {
	tr := &trace{}
	c := newTestController(tr)
	c.SimulateCall("+15550100")

	number, ok := c.IncomingNumber()
	assert.Assert(t, ok)
	assert.Equal(t, number, "+15550100")
	assert.Assert(t, c.IsCallScreenVisible())
	assert.Assert(t, c.IsCallActive())
	assert.DeepEqual(t, tr.events, []string{"vibrate:2:true"})
}

func TestControllerSimulateDefault(t *testing.T) {
	c := newTestController(&trace{})
	c.SimulateCall()

	number, ok := c.IncomingNumber()
	assert.Assert(t, ok)
	assert.Equal(t, number, DefaultNumber)
}

func TestControllerAcceptDialsAndCloses(t *testing.T) {
	tr := &trace{}
	c := newTestController(tr)
	c.SimulateCall("+15550100")
	c.HandleCallAction(ActionAccept)

	assert.DeepEqual(t, tr.dials(), []string{"tel:+15550100"})
	assert.Assert(t, !c.IsCallScreenVisible())
	number, _ := c.IncomingNumber()
	assert.Equal(t, number, "+15550100")
}

func TestControllerRejectDoesNotDial(t *testing.T) {
	for _, action := range []string{ActionReject, "ignore"} {
		tr := &trace{}
		c := newTestController(tr)
		c.SimulateCall("+15550100")
		c.HandleCallAction(action)

		assert.Equal(t, len(tr.dials()), 0)
		assert.Assert(t, !c.IsCallScreenVisible())
	}
}

func TestControllerResolveTwice(t *testing.T) {
	tr := &trace{}
	c := newTestController(tr)
	c.SimulateCall("+15550100")
	c.HandleCallAction(ActionAccept)
	c.HandleCallAction(ActionAccept)

	assert.Equal(t, len(tr.dials()), 1)
	assert.DeepEqual(t, tr.events, []string{"vibrate:2:true", "dial:tel:+15550100", "cancel", "cancel"})
}

func TestControllerResolveWithoutSession(t *testing.T) {
	tr := &trace{}
	c := newTestController(tr)
	c.HandleCallAction(ActionAccept)

	assert.DeepEqual(t, tr.events, []string{"cancel"})
	assert.Assert(t, !c.IsCallScreenVisible())
}

func TestControllerResimulateOverwrites(t *testing.T) {
	tr := &trace{}
	c := newTestController(tr)
	c.SimulateCall("A")
	c.SimulateCall("B")

	number, _ := c.IncomingNumber()
	assert.Equal(t, number, "B")
	assert.Equal(t, c.Session().ID, "call_2")
	assert.DeepEqual(t, tr.events, []string{"vibrate:2:true", "vibrate:2:true"})

	c.HandleCallAction(ActionAccept)
	assert.DeepEqual(t, tr.dials(), []string{"tel:B"})
}

// A resolved call keeps reporting active until the next simulated call.
func TestControllerActiveSurvivesResolve(t *testing.T) {
	c := newTestController(&trace{})
	c.SimulateCall("+15550100")
	c.HandleCallAction(ActionReject)

	assert.Assert(t, c.IsCallActive())
}

func TestControllerEffectOrder(t *testing.T) {
	tr := &trace{}
	c := newTestController(tr)
	c.SimulateCall("+15550100")
	c.OnSessionChanged(ListenerFunc(func(s types.CallSession) {
		tr.events = append(tr.events, fmt.Sprintf("commit:visible=%t", s.IsVisible))
	}))
	c.HandleCallAction(ActionAccept)

	assert.DeepEqual(t, tr.events, []string{
		"vibrate:2:true",
		"dial:tel:+15550100",
		"cancel",
		"commit:visible=false",
	})
}

func TestControllerSwallowsDialFailure(t *testing.T) {
	tr := &trace{dialErr: errors.New("no dialer available")}
	c := newTestController(tr)
	c.SimulateCall("+15550100")
	c.HandleCallAction(ActionAccept)

	assert.DeepEqual(t, tr.events, []string{"vibrate:2:true", "dial:tel:+15550100", "cancel"})
	assert.Assert(t, !c.IsCallScreenVisible())
}

func TestActionHandlerIdentity(t *testing.T) {
	c := newTestController(&trace{})
	empty := c.ActionHandler()
	assert.Equal(t, empty.Number(), "")

	c.SimulateCall("A")
	a := c.ActionHandler()
	assert.Assert(t, a != empty)
	assert.Equal(t, a.Number(), "A")

	c.HandleCallAction(ActionReject)
	assert.Assert(t, c.ActionHandler() == a)

	c.SimulateCall("A")
	assert.Assert(t, c.ActionHandler() == a)

	c.SimulateCall("B")
	assert.Assert(t, c.ActionHandler() != a)
}

func TestActionHandlerResolvesCurrentSession(t *testing.T) {
	tr := &trace{}
	c := newTestController(tr)
	c.SimulateCall("A")
	h := c.ActionHandler()
	h.Handle(ActionAccept)

	assert.DeepEqual(t, tr.dials(), []string{"tel:A"})
	assert.Assert(t, !c.IsCallScreenVisible())
}

func TestListenersSeeEveryCommit(t *testing.T) {
	c := newTestController(&trace{})
	var seen []types.CallSession
	unsubscribe := c.OnSessionChanged(ListenerFunc(func(s types.CallSession) {
		seen = append(seen, s)
	}))

	c.SimulateCall("A")
	c.HandleCallAction(ActionReject)
	unsubscribe()
	c.SimulateCall("B")

	assert.DeepEqual(t, seen, []types.CallSession{
		{ID: "call_1", Number: "A", IsVisible: true, IsActive: true},
		{ID: "call_1", Number: "A", IsVisible: false, IsActive: true},
	})
}

func TestListenerMayCallBack(t *testing.T) {
	c := newTestController(&trace{})
	c.OnSessionChanged(ListenerFunc(func(s types.CallSession) {
		if s.IsVisible {
			c.HandleCallAction(ActionReject)
		}
	}))
	c.SimulateCall("A")

	assert.Assert(t, !c.IsCallScreenVisible())
}

func TestUnsubscribeKeepsOthers(t *testing.T) {
	c := newTestController(&trace{})
	var first, second int
	stop := c.OnSessionChanged(ListenerFunc(func(types.CallSession) { first++ }))
	c.OnSessionChanged(ListenerFunc(func(types.CallSession) { second++ }))

	stop()
	stop()
	c.SimulateCall()

	assert.Equal(t, first, 0)
	assert.Equal(t, second, 1)
}

func TestListenersSeeCommitsInOrder(t *testing.T) {
	c := newTestController(&trace{})

	entered := make(chan struct{})
	release := make(chan struct{})
	var mutex sync.Mutex
	var seen []string
	c.OnSessionChanged(ListenerFunc(func(s types.CallSession) {
		if s.Number == "A" {
			close(entered)
			<-release
		}
		mutex.Lock()
		seen = append(seen, s.Number)
		mutex.Unlock()
	}))

	done := make(chan struct{})
	go func() {
		c.SimulateCall("A")
		close(done)
	}()

	<-entered
	c.SimulateCall("B")
	close(release)
	<-done

	mutex.Lock()
	defer mutex.Unlock()
	assert.DeepEqual(t, seen, []string{"A", "B"})
	assert.Equal(t, seen[len(seen)-1], c.Session().Number)
}

func TestListenerCallbackDeliveredAfterCurrentCommit(t *testing.T) {
	c := newTestController(&trace{})
	var seen []bool
	c.OnSessionChanged(ListenerFunc(func(s types.CallSession) {
		seen = append(seen, s.IsVisible)
		if s.IsVisible {
			c.HandleCallAction(ActionReject)
		}
	}))
	c.SimulateCall("A")

	assert.DeepEqual(t, seen, []bool{true, false})
}
