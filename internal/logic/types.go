// Package logic contains pure business logic for range reading classification
// and presence detection. This package has NO external dependencies (no GPIO,
// MQTT, OS, or time.Sleep). Time is always injectable via time.Time parameters.
package logic

import "time"

// Reading is a single range measurement.
type Reading struct {
	Time       time.Time
	PulseWidth uint32 // echo pulse width in microseconds; 0 = no echo
	Metres     float64
}

// Timeout reports whether the reading is a missed echo.
func (r Reading) Timeout() bool {
	return r.PulseWidth == 0
}

// Presence is the debounced occupancy state of the detection zone.
type Presence string

const (
	PresenceUnknown  Presence = "UNKNOWN"
	PresenceDetected Presence = "DETECTED"
	PresenceClear    Presence = "CLEAR"
)

// EventType represents a presence transition event.
type EventType string

const (
	EventObjectDetected EventType = "OBJECT_DETECTED"
	EventObjectCleared  EventType = "OBJECT_CLEARED"
)

// Event represents a presence transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Reading   Reading
	Presence  Presence
}

// Counts tracks readings processed since startup.
type Counts struct {
	Readings int
	Echoes   int
	Timeouts int
	Detected int
	Cleared  int
}

// Stats summarizes the echoes seen so far. Min and Max only cover readings
// that actually produced an echo; HaveEcho is false until the first one.
type Stats struct {
	Last     Reading
	Min      float64
	Max      float64
	HaveEcho bool
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
	Stats     Stats
	Presence  Presence
}
