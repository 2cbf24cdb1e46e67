package signal

import (
	"sync"

	"github.com/Reverse-Call-Center/call-signal/haptics"
	"github.com/Reverse-Call-Center/call-signal/types"
	"github.com/Reverse-Call-Center/call-signal/utils"
	"github.com/sirupsen/logrus"
)

// Vibrator is the haptic primitive rung while a call is presented.
type Vibrator interface {
	Vibrate(p haptics.Pattern, repeat bool)
	Cancel()
}

// Dialer requests a phone dial for a tel: URI.
type Dialer interface {
	Dial(uri string) error
}

// Listener is notified after every committed session change.
type Listener interface {
	OnSessionChanged(types.CallSession)
}

type ListenerFunc func(types.CallSession)

func (f ListenerFunc) OnSessionChanged(s types.CallSession) { f(s) }

// ActionHandler resolves the current call. The controller hands out the same
// handler until the session's number changes.
type ActionHandler struct {
	c      *Controller
	number string
}

func (h *ActionHandler) Number() string { return h.number }

func (h *ActionHandler) Handle(action string) types.CallSession {
	return h.c.apply(Resolve(action))
}

type Option func(*Controller)

func WithPolicy(p Policy) Option {
	return func(c *Controller) { c.policy = p }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Controller) { c.log = log }
}

// WithCallIDs overrides call ID generation.
func WithCallIDs(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

func WithLogNumbers(enabled bool) Option {
	return func(c *Controller) { c.logNumbers = enabled }
}

type Controller struct {
	vibrator Vibrator
	dialer   Dialer
	policy   Policy
	log      *logrus.Entry
	newID    func() string

	logNumbers bool

	mutex     sync.Mutex
	session   types.CallSession
	handler   *ActionHandler
	listeners []listenerEntry
	nextID    uint64

	// Commits waiting for delivery, oldest first. Only the goroutine that
	// set delivering drains the queue.
	pending    []notification
	delivering bool
}

type listenerEntry struct {
	id       uint64
	listener Listener
}

type notification struct {
	session   types.CallSession
	listeners []Listener
}

func NewController(vibrator Vibrator, dialer Dialer, opts ...Option) *Controller {
	c := &Controller{
		vibrator: vibrator,
		dialer:   dialer,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		newID:    utils.GenerateCallID,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.handler = &ActionHandler{c: c}
	return c
}

// SimulateCall presents an incoming call from number, or from the default
// placeholder when number is omitted or empty. It returns the session it
// committed.
func (c *Controller) SimulateCall(number ...string) types.CallSession {
	var n string
	if len(number) > 0 {
		n = number[0]
	}
	return c.apply(Simulate(c.newID(), n))
}

// HandleCallAction resolves the presented call. Only ActionAccept dials.
func (c *Controller) HandleCallAction(action string) types.CallSession {
	return c.ActionHandler().Handle(action)
}

func (c *Controller) ActionHandler() *ActionHandler {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.handler
}

func (c *Controller) Session() types.CallSession {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.session
}

func (c *Controller) IncomingNumber() (string, bool) {
	s := c.Session()
	return s.Number, s.HasNumber()
}

func (c *Controller) IsCallScreenVisible() bool {
	return c.Session().IsVisible
}

func (c *Controller) IsCallActive() bool {
	return c.Session().IsActive
}

// OnSessionChanged registers l and returns a function that removes it.
func (c *Controller) OnSessionChanged(l Listener) func() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, listener: l})

	return func() {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		for i, e := range c.listeners {
			if e.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) apply(ev Event) types.CallSession {
	c.mutex.Lock()
	next, effects := c.policy.Next(c.session, ev)
	for _, e := range effects {
		c.execute(next, e)
	}
	session := c.session
	listeners := make([]Listener, 0, len(c.listeners))
	for _, e := range c.listeners {
		listeners = append(listeners, e.listener)
	}
	c.pending = append(c.pending, notification{session: session, listeners: listeners})
	deliver := !c.delivering
	c.delivering = true
	c.mutex.Unlock()

	c.logTransition(ev, session)
	if deliver {
		c.deliver()
	}
	return session
}

// deliver hands queued commits to listeners in commit order. Commits made
// while it runs, including ones made by listeners, are delivered by the same
// loop, so listeners never see an older session after a newer one.
func (c *Controller) deliver() {
	done := false
	defer func() {
		if !done {
			c.mutex.Lock()
			c.delivering = false
			c.mutex.Unlock()
		}
	}()

	for {
		c.mutex.Lock()
		if len(c.pending) == 0 {
			c.delivering = false
			c.mutex.Unlock()
			done = true
			return
		}
		n := c.pending[0]
		c.pending[0] = notification{}
		c.pending = c.pending[1:]
		c.mutex.Unlock()

		for _, l := range n.listeners {
			l.OnSessionChanged(n.session)
		}
	}
}

// execute runs one effect with c.mutex held.
func (c *Controller) execute(next types.CallSession, e Effect) {
	switch e.Kind {
	case EffectCommit:
		if next.Number != c.session.Number {
			c.handler = &ActionHandler{c: c, number: next.Number}
		}
		c.session = next
	case EffectDial:
		// Dispatch failures belong to the dialer.
		_ = c.dialer.Dial(e.URI)
	case EffectStartVibration:
		c.vibrator.Vibrate(e.Pattern, e.Repeat)
	case EffectCancelVibration:
		c.vibrator.Cancel()
	}
}

func (c *Controller) logTransition(ev Event, s types.CallSession) {
	number := s.Number
	if !c.logNumbers {
		number = utils.MaskNumber(number)
	}
	log := c.log.WithFields(logrus.Fields{
		"call_id": s.ID,
		"number":  number,
		"state":   s.State().String(),
	})
	switch ev.Kind {
	case EventSimulate:
		log.Info("Incoming call presented")
	case EventResolve:
		log.WithField("action", ev.Action).Info("Call action handled")
	}
}
