package hcsr04

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/sweeney/range-sensor/internal/gpio"
)

// EdgeHandler receives one edge event: the new pin level and the tick
// timestamp at which the transition occurred.
type EdgeHandler func(level gpio.Level, ticks uint32)

// Dispatcher fans the GPIO subsystem's single edge callback out to
// per-sensor handlers, keyed by echo pin. The subsystem supports exactly one
// callback per subscription, so this registry is what lets multiple
// independent rangers coexist in one process.
//
// All methods are safe for concurrent use; Dispatch may run from the
// subsystem's event goroutine while Register/Unregister run from the caller.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[int]EdgeHandler

	unhandled atomic.Uint64
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[int]EdgeHandler)}
}

// Register installs the handler for the pin, replacing any existing entry.
func (d *Dispatcher) Register(pin int, h EdgeHandler) {
	d.mu.Lock()
	d.handlers[pin] = h
	d.mu.Unlock()
}

// Unregister removes the handler for the pin. Removing a pin that was never
// registered is a no-op.
func (d *Dispatcher) Unregister(pin int) {
	d.mu.Lock()
	delete(d.handlers, pin)
	d.mu.Unlock()
}

// Dispatch routes an edge event to the handler registered for its pin.
// An event for an unregistered pin is logged and counted, never an error:
// the dispatcher stays available for every other pin.
func (d *Dispatcher) Dispatch(ev gpio.Event) {
	d.mu.Lock()
	h := d.handlers[ev.Pin]
	d.mu.Unlock()

	if h == nil {
		d.unhandled.Add(1)
		log.Printf("hcsr04: unhandled edge event: pin=%d level=%d ticks=%d", ev.Pin, ev.Level, ev.Ticks)
		return
	}
	h(ev.Level, ev.Ticks)
}

// UnhandledCount returns the number of edge events that arrived for pins
// with no registered handler.
func (d *Dispatcher) UnhandledCount() uint64 {
	return d.unhandled.Load()
}
