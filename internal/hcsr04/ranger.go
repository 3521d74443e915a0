// Package hcsr04 drives the HC-SR04 ultrasonic distance sensor. A Ranger
// emits a 10us trigger pulse and times the returned echo pulse using edge
// events from the GPIO subsystem; the echo pulse width is proportional to
// the round-trip travel time of the ultrasonic burst.
package hcsr04

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/range-sensor/internal/gpio"
)

// ErrSubsystemUnavailable is returned by New when no GPIO subsystem handle
// could be acquired.
var ErrSubsystemUnavailable = errors.New("hcsr04: gpio subsystem unavailable")

const (
	// SpeedOfSoundDefault is the speed of sound in air in metres per second.
	SpeedOfSoundDefault = 343.0

	// MaximumRange is the rated range of the HC-SR04 in metres.
	MaximumRange = 4.0

	// TriggerPulseWidth is the trigger pulse the sensor datasheet requires.
	TriggerPulseWidth = 10 * time.Microsecond
)

// MaximumEchoTime is the longest echo round trip expected at the rated range,
// about 23.3ms. MaximumRangeTime adds 10% slack and bounds how long a
// measurement waits for an echo. Both are derived from SpeedOfSoundDefault
// and stay fixed even if a different speed of sound is configured later.
var (
	maximumEchoSeconds float64 = 2 * MaximumRange / SpeedOfSoundDefault

	MaximumEchoTime  = time.Duration(maximumEchoSeconds * float64(time.Second))
	MaximumRangeTime = time.Duration(float64(MaximumEchoTime) * 1.1)
)

// DefaultPollInterval is how long PulseWidth sleeps between checks for a
// completed echo measurement.
var DefaultPollInterval = MaximumRangeTime / 10

// Ranger is a single HC-SR04 sensor on a trigger/echo pin pair. It owns its
// GPIO subsystem handle until Close.
//
// Measurement methods must not be called concurrently on one Ranger: they
// share the trigger pin and the echo timing state. Distinct Rangers on
// distinct pin pairs are fully independent.
type Ranger struct {
	conn       gpio.Conn
	disp       *Dispatcher
	triggerPin int
	echoPin    int
	sub        gpio.Subscription

	mu           sync.Mutex
	speedOfSound float64
	pollInterval time.Duration
	initialTicks uint32
	elapsedTicks uint32
	closed       bool
}

// New configures the pin pair and registers for echo edge events. At most
// one Ranger may exist per echo pin at a time; registering a second replaces
// the first's dispatch entry, so don't.
//
// New blocks for MaximumEchoTime after configuring the pins to let the
// sensor settle before the first trigger.
func New(conn gpio.Conn, disp *Dispatcher, triggerPin, echoPin int) (*Ranger, error) {
	if conn == nil {
		return nil, ErrSubsystemUnavailable
	}

	r := &Ranger{
		conn:         conn,
		disp:         disp,
		triggerPin:   triggerPin,
		echoPin:      echoPin,
		speedOfSound: SpeedOfSoundDefault,
		pollInterval: DefaultPollInterval,
	}

	if err := conn.SetOutput(triggerPin); err != nil {
		return nil, fmt.Errorf("configure trigger pin %d as output: %w", triggerPin, err)
	}
	if err := conn.SetInput(echoPin); err != nil {
		return nil, fmt.Errorf("configure echo pin %d as input: %w", echoPin, err)
	}
	if err := conn.Write(triggerPin, gpio.Low); err != nil {
		return nil, fmt.Errorf("set trigger pin %d low: %w", triggerPin, err)
	}

	// Settle time before the sensor will range reliably.
	time.Sleep(MaximumEchoTime)

	disp.Register(echoPin, r.handleEdge)
	sub, err := conn.SubscribeEdges(echoPin, disp.Dispatch)
	if err != nil {
		disp.Unregister(echoPin)
		return nil, fmt.Errorf("subscribe to echo pin %d edges: %w", echoPin, err)
	}
	r.sub = sub

	return r, nil
}

// SetSpeedOfSound sets the speed of sound in metres per second used to
// convert pulse widths to distances. No validation is performed; callers are
// responsible for physically sensible values. The measurement timeout window
// is derived from SpeedOfSoundDefault and is not recomputed.
func (r *Ranger) SetSpeedOfSound(speed float64) {
	r.mu.Lock()
	r.speedOfSound = speed
	r.mu.Unlock()
}

// SpeedOfSound returns the configured speed of sound in metres per second.
func (r *Ranger) SpeedOfSound() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speedOfSound
}

// SetPollInterval sets how long PulseWidth sleeps between checks for a
// completed measurement. Non-positive values restore the default.
func (r *Ranger) SetPollInterval(d time.Duration) {
	r.mu.Lock()
	if d <= 0 {
		d = DefaultPollInterval
	}
	r.pollInterval = d
	r.mu.Unlock()
}

// handleEdge runs on the subsystem's event goroutine for every edge of the
// echo pin. Rising edge starts a measurement; falling edge completes it.
func (r *Ranger) handleEdge(level gpio.Level, ticks uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if level == gpio.High {
		// A second rising edge with no falling edge in between (echo
		// noise, reflections) discards the partial measurement and
		// restarts from the new timestamp.
		r.initialTicks = ticks
		return
	}

	if r.initialTicks > 0 {
		r.elapsedTicks = TickDiff(r.initialTicks, ticks)
		r.initialTicks = 0
	}
	// A falling edge with no pulse in flight is spurious; ignore it.
}

// PulseWidth takes a single range measurement and returns the echo pulse
// width in microseconds. A return of 0 means no echo was detected within
// MaximumRangeTime; that is a routine outcome (nothing in range), not an
// error. Errors are reported only for trigger pulse failures.
//
// The previous measurement's pulse width is not cleared before triggering,
// so a call made while an earlier echo is still in flight can observe the
// earlier result. Serialize measurements per Ranger.
func (r *Ranger) PulseWidth() (uint32, error) {
	if err := r.conn.Pulse(r.triggerPin, TriggerPulseWidth, gpio.High); err != nil {
		return 0, fmt.Errorf("trigger pulse on pin %d: %w", r.triggerPin, err)
	}

	deadline := time.Now().Add(MaximumRangeTime)
	for r.elapsed() == 0 && time.Now().Before(deadline) {
		time.Sleep(r.poll())
	}
	return r.elapsed(), nil
}

// Range takes a single range measurement and returns the distance in metres.
// The rated range is 0 to 4m; a missed echo yields exactly 0 and an
// out-of-spec long echo can legitimately yield more than 4m. No clamping is
// applied; callers decide how to interpret either.
func (r *Ranger) Range() (float64, error) {
	width, err := r.PulseWidth()
	if err != nil {
		return 0, err
	}
	// Pulse width is the round trip in microseconds: halve it and convert
	// microseconds to seconds.
	return r.SpeedOfSound() * float64(width) / 2e6, nil
}

func (r *Ranger) elapsed() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsedTicks
}

func (r *Ranger) poll() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pollInterval
}

// Close releases the edge subscription, reverts the trigger pin to an input
// so it is no longer driven, removes the dispatcher entry, and closes the
// subsystem handle. Teardown is best effort: every step runs even if an
// earlier one fails, and the first error is returned. A second Close is a
// no-op.
func (r *Ranger) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var first error
	keep := func(err error) {
		if first == nil && err != nil {
			first = err
		}
	}

	if r.sub != nil {
		if err := r.sub.Cancel(); err != nil {
			keep(fmt.Errorf("cancel echo pin %d subscription: %w", r.echoPin, err))
		}
		r.sub = nil
	}

	if err := r.conn.SetInput(r.triggerPin); err != nil {
		keep(fmt.Errorf("revert trigger pin %d to input: %w", r.triggerPin, err))
	}

	r.disp.Unregister(r.echoPin)

	if err := r.conn.Close(); err != nil {
		keep(fmt.Errorf("close gpio: %w", err))
	}

	return first
}
