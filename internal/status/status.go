// Package status provides a thread-safe status tracker for the range-sensor
// daemon. It is designed to be read by HTTP handlers and (future) LED drivers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/range-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	IntervalMs    int64
	ThresholdM    float64
	DebounceCount int
	HeartbeatMs   int64
	Broker        string
	HTTPPort      string
	WSBroker      string // Websocket broker URL for browser MQTT (empty = disabled)
	PinTrigger    int
	PinEcho       int
	SpeedOfSound  float64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Presence       logic.Presence
	Baselined      bool
	Counts         logic.Counts
	Stats          logic.Stats
	UnhandledEdges uint64
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Network        *NetworkInfo
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Presence:  logic.PresenceUnknown,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets presence state, baseline status, counts, and echo statistics.
// Called from the run loop after every measurement.
func (t *Tracker) Update(presence logic.Presence, baselined bool, counts logic.Counts, stats logic.Stats) {
	t.mu.Lock()
	t.snap.Presence = presence
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.snap.Stats = stats
	t.mu.Unlock()
}

// SetUnhandledEdges sets the dispatcher's unhandled edge event count.
func (t *Tracker) SetUnhandledEdges(n uint64) {
	t.mu.Lock()
	t.snap.UnhandledEdges = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
