// Package gpio provides pin-level GPIO access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Level is a digital pin level.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

// Event is an edge transition on a monitored pin. Ticks is a wrapping
// 32-bit microsecond timestamp from a monotonic source; elapsed time
// between two tick values must be computed with wraparound-safe
// subtraction, never a plain signed difference.
type Event struct {
	Pin   int
	Level Level // High = rising edge, Low = falling edge
	Ticks uint32
}

// Subscription is an active edge-event registration.
type Subscription interface {
	// Cancel stops delivery of edge events for this subscription.
	Cancel() error
}

// Conn is a handle to the GPIO subsystem.
type Conn interface {
	// SetInput configures the pin as an input.
	SetInput(pin int) error

	// SetOutput configures the pin as an output, driven low.
	SetOutput(pin int) error

	// Write drives an output pin to the given level.
	Write(pin int, level Level) error

	// Pulse drives the pin to level for the given width, then back to
	// the opposite level.
	Pulse(pin int, width time.Duration, level Level) error

	// SubscribeEdges delivers both rising and falling edges on the pin
	// to fn. fn is called from a background goroutine.
	SubscribeEdges(pin int, fn func(Event)) (Subscription, error)

	// Close releases all GPIO resources.
	Close() error
}

// Default pin assignments (BCM numbering).
const (
	DefaultPinTrigger = 23
	DefaultPinEcho    = 24
)
