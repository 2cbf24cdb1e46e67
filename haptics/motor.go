package haptics

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pattern alternates on and off durations, starting with on.
type Pattern []time.Duration

// PatternFromMillis builds a Pattern from millisecond values.
func PatternFromMillis(ms []int) Pattern {
	p := make(Pattern, 0, len(ms))
	for _, v := range ms {
		p = append(p, time.Duration(v)*time.Millisecond)
	}
	return p
}

func (p Pattern) Total() time.Duration {
	var total time.Duration
	for _, d := range p {
		total += d
	}
	return total
}

// Actuator drives the physical (or simulated) motor.
type Actuator interface {
	Set(on bool)
}

type Motor struct {
	actuator Actuator
	mutex    sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewMotor(actuator Actuator) *Motor {
	return &Motor{actuator: actuator}
}

// Vibrate plays p on the actuator, replacing whatever pattern is playing.
func (m *Motor) Vibrate(p Pattern, repeat bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.stopLocked()
	if p.Total() <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	pattern := append(Pattern(nil), p...)
	go func() {
		defer close(done)
		m.run(ctx, pattern, repeat)
	}()
}

// Cancel stops the current pattern and waits until the motor is off.
func (m *Motor) Cancel() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.stopLocked()
}

// running reports whether a pattern is still playing.
func (m *Motor) running() bool {
	m.mutex.Lock()
	done := m.done
	m.mutex.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (m *Motor) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
}

func (m *Motor) run(ctx context.Context, p Pattern, repeat bool) {
	defer m.actuator.Set(false)

	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()

	for {
		for i, d := range p {
			if d <= 0 {
				continue
			}
			m.actuator.Set(i%2 == 0)
			timer.Reset(d)
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}
		if !repeat {
			return
		}
	}
}

// LogActuator reports motor pulses to a logger instead of real hardware.
type LogActuator struct {
	Log *logrus.Entry

	mutex sync.Mutex
	on    bool
}

func (a *LogActuator) Set(on bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.on == on {
		return
	}
	a.on = on
	if on {
		a.Log.Debug("Vibration motor on")
	} else {
		a.Log.Debug("Vibration motor off")
	}
}
