package gpio

import (
	"fmt"
	"sync"
	"time"
)

// FakeConn is a test double that records pin operations and lets tests
// inject edge events. It is safe for concurrent use.
type FakeConn struct {
	mu    sync.Mutex
	modes map[int]string
	subs  map[int]func(Event)

	// Writes records every Write call in order.
	Writes []WriteOp

	// Pulses records every Pulse call in order.
	Pulses []PulseOp

	// OnPulse, if set, is invoked after each recorded pulse. Tests use it
	// to script the echo response to a trigger pulse.
	OnPulse func(pin int, width time.Duration, level Level)

	// Closed tracks if Close was called.
	Closed bool

	// Cancelled counts Subscription.Cancel calls.
	Cancelled int

	// Error injection: if set, the corresponding operation fails.
	SetModeError   error
	WriteError     error
	PulseError     error
	SubscribeError error
	CancelError    error
	CloseError     error
}

// WriteOp is a recorded Write call.
type WriteOp struct {
	Pin   int
	Level Level
}

// PulseOp is a recorded Pulse call.
type PulseOp struct {
	Pin   int
	Width time.Duration
	Level Level
}

// NewFakeConn creates a FakeConn with no pins configured.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		modes: make(map[int]string),
		subs:  make(map[int]func(Event)),
	}
}

// SetInput records the pin as an input.
func (f *FakeConn) SetInput(pin int) error {
	if f.SetModeError != nil {
		return f.SetModeError
	}
	f.mu.Lock()
	f.modes[pin] = "in"
	f.mu.Unlock()
	return nil
}

// SetOutput records the pin as an output.
func (f *FakeConn) SetOutput(pin int) error {
	if f.SetModeError != nil {
		return f.SetModeError
	}
	f.mu.Lock()
	f.modes[pin] = "out"
	f.mu.Unlock()
	return nil
}

// Mode returns the recorded mode for the pin ("in", "out", or "" if never set).
func (f *FakeConn) Mode(pin int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modes[pin]
}

// Write records the write.
func (f *FakeConn) Write(pin int, level Level) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.mu.Lock()
	f.Writes = append(f.Writes, WriteOp{Pin: pin, Level: level})
	f.mu.Unlock()
	return nil
}

// Pulse records the pulse and then runs the OnPulse hook, if any.
// The hook runs without the internal lock held so it may call InjectEdge.
func (f *FakeConn) Pulse(pin int, width time.Duration, level Level) error {
	if f.PulseError != nil {
		return f.PulseError
	}
	f.mu.Lock()
	f.Pulses = append(f.Pulses, PulseOp{Pin: pin, Width: width, Level: level})
	hook := f.OnPulse
	f.mu.Unlock()

	if hook != nil {
		hook(pin, width, level)
	}
	return nil
}

// SubscribeEdges registers fn to receive injected edges for the pin.
func (f *FakeConn) SubscribeEdges(pin int, fn func(Event)) (Subscription, error) {
	if f.SubscribeError != nil {
		return nil, f.SubscribeError
	}
	f.mu.Lock()
	f.subs[pin] = fn
	f.mu.Unlock()
	return &fakeSubscription{conn: f, pin: pin}, nil
}

// InjectEdge delivers an edge event to the subscriber for the pin, as the
// kernel would. Returns an error if nothing is subscribed to the pin.
func (f *FakeConn) InjectEdge(pin int, level Level, ticks uint32) error {
	f.mu.Lock()
	fn := f.subs[pin]
	f.mu.Unlock()
	if fn == nil {
		return fmt.Errorf("no edge subscription for pin %d", pin)
	}
	fn(Event{Pin: pin, Level: level, Ticks: ticks})
	return nil
}

// Subscribed reports whether the pin currently has an edge subscription.
func (f *FakeConn) Subscribed(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[pin] != nil
}

// Close marks the connection as closed.
func (f *FakeConn) Close() error {
	if f.CloseError != nil {
		return f.CloseError
	}
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

type fakeSubscription struct {
	conn *FakeConn
	pin  int
}

func (s *fakeSubscription) Cancel() error {
	if s.conn.CancelError != nil {
		return s.conn.CancelError
	}
	s.conn.mu.Lock()
	delete(s.conn.subs, s.pin)
	s.conn.Cancelled++
	s.conn.mu.Unlock()
	return nil
}
