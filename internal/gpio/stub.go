//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealConn is not available on non-Linux platforms.
type RealConn struct{}

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// NewRealConn returns an error on non-Linux platforms.
func NewRealConn() (*RealConn, error) {
	return nil, errUnsupported
}

// SetInput is not implemented on non-Linux platforms.
func (c *RealConn) SetInput(pin int) error { return errUnsupported }

// SetOutput is not implemented on non-Linux platforms.
func (c *RealConn) SetOutput(pin int) error { return errUnsupported }

// Write is not implemented on non-Linux platforms.
func (c *RealConn) Write(pin int, level Level) error { return errUnsupported }

// Pulse is not implemented on non-Linux platforms.
func (c *RealConn) Pulse(pin int, width time.Duration, level Level) error { return errUnsupported }

// SubscribeEdges is not implemented on non-Linux platforms.
func (c *RealConn) SubscribeEdges(pin int, fn func(Event)) (Subscription, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *RealConn) Close() error { return nil }
