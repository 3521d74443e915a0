//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealConn talks to actual hardware using the Linux GPIO character device.
type RealConn struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// NewRealConn opens the GPIO character device for actual Raspberry Pi hardware.
func NewRealConn() (*RealConn, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealConn{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// request releases any existing claim on the pin and re-requests it with the
// given options. The chardev API binds direction and edge detection at
// request time, so mode changes are a close-and-reopen.
func (c *RealConn) request(pin int, opts ...gpiocdev.LineReqOption) (*gpiocdev.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lines[pin]; ok {
		old.Close()
		delete(c.lines, pin)
	}
	line, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, err
	}
	c.lines[pin] = line
	return line, nil
}

func (c *RealConn) line(pin int) (*gpiocdev.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[pin]
	if !ok {
		return nil, fmt.Errorf("pin %d not configured", pin)
	}
	return line, nil
}

// SetInput configures the pin as an input.
func (c *RealConn) SetInput(pin int) error {
	if _, err := c.request(pin, gpiocdev.AsInput); err != nil {
		return fmt.Errorf("request pin %d as input: %w", pin, err)
	}
	return nil
}

// SetOutput configures the pin as an output, driven low.
func (c *RealConn) SetOutput(pin int) error {
	if _, err := c.request(pin, gpiocdev.AsOutput(0)); err != nil {
		return fmt.Errorf("request pin %d as output: %w", pin, err)
	}
	return nil
}

// Write drives an output pin to the given level.
func (c *RealConn) Write(pin int, level Level) error {
	line, err := c.line(pin)
	if err != nil {
		return err
	}
	if err := line.SetValue(int(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Pulse drives the pin to level for width, then back. The chardev API has no
// hardware pulse primitive, so the width is produced by sleeping; widths of a
// few microseconds come out slightly long, which the HC-SR04 tolerates.
func (c *RealConn) Pulse(pin int, width time.Duration, level Level) error {
	line, err := c.line(pin)
	if err != nil {
		return err
	}
	if err := line.SetValue(int(level)); err != nil {
		return fmt.Errorf("pulse pin %d: %w", pin, err)
	}
	time.Sleep(width)
	if err := line.SetValue(int(1 - level)); err != nil {
		return fmt.Errorf("pulse pin %d: %w", pin, err)
	}
	return nil
}

// realSubscription cancels edge delivery by re-requesting the line as a
// plain input.
type realSubscription struct {
	conn *RealConn
	pin  int
}

func (s *realSubscription) Cancel() error {
	return s.conn.SetInput(s.pin)
}

// SubscribeEdges delivers both rising and falling edges on the pin to fn.
// The kernel event timestamp is truncated to a uint32 microsecond tick,
// which wraps modulo 2^32 roughly every 72 minutes.
func (c *RealConn) SubscribeEdges(pin int, fn func(Event)) (Subscription, error) {
	handler := func(evt gpiocdev.LineEvent) {
		level := High
		if evt.Type == gpiocdev.LineEventFallingEdge {
			level = Low
		}
		fn(Event{
			Pin:   pin,
			Level: level,
			Ticks: uint32(evt.Timestamp.Microseconds()),
		})
	}
	if _, err := c.request(pin, gpiocdev.AsInput, gpiocdev.WithBothEdges, gpiocdev.WithEventHandler(handler)); err != nil {
		return nil, fmt.Errorf("subscribe edges on pin %d: %w", pin, err)
	}
	return &realSubscription{conn: c, pin: pin}, nil
}

// Close releases all requested lines and the chip.
// Continues past individual failures and reports them together.
func (c *RealConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for pin, line := range c.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
		delete(c.lines, pin)
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
