package logic

import "time"

// Monitor classifies range readings against a distance threshold and detects
// debounced presence transitions. A reading with an echo at or inside the
// threshold counts toward DETECTED; a timeout or an echo beyond the threshold
// counts toward CLEAR. A state change is only reported after debounceCount
// consecutive readings agree, which rides out single noisy echoes.
type Monitor struct {
	threshold     float64
	debounceCount int

	state        Presence
	pending      Presence
	pendingCount int

	counts Counts
	stats  Stats

	startTime     time.Time
	lastHeartbeat time.Time
}

// NewMonitor creates a presence monitor. threshold is the detection distance
// in metres; debounceCount is how many consecutive agreeing readings are
// needed to change state (values below 1 are treated as 1). The startTime is
// used for calculating uptime in heartbeat events.
func NewMonitor(threshold float64, debounceCount int, startTime time.Time) *Monitor {
	if debounceCount < 1 {
		debounceCount = 1
	}
	return &Monitor{
		threshold:     threshold,
		debounceCount: debounceCount,
		state:         PresenceUnknown,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes a new reading and returns a presence transition event, or
// nil. The first debounced state after startup establishes the baseline and
// is not reported as an event.
func (m *Monitor) Process(r Reading) *Event {
	m.counts.Readings++
	if r.Timeout() {
		m.counts.Timeouts++
	} else {
		m.counts.Echoes++
		if !m.stats.HaveEcho || r.Metres < m.stats.Min {
			m.stats.Min = r.Metres
		}
		if !m.stats.HaveEcho || r.Metres > m.stats.Max {
			m.stats.Max = r.Metres
		}
		m.stats.HaveEcho = true
	}
	m.stats.Last = r

	target := PresenceClear
	if !r.Timeout() && r.Metres <= m.threshold {
		target = PresenceDetected
	}

	if target == m.state {
		m.pending = ""
		m.pendingCount = 0
		return nil
	}

	if m.pending != target {
		m.pending = target
		m.pendingCount = 0
	}
	m.pendingCount++
	if m.pendingCount < m.debounceCount {
		return nil
	}

	old := m.state
	m.state = target
	m.pending = ""
	m.pendingCount = 0

	if old == PresenceUnknown {
		// Baseline established, nothing to report.
		return nil
	}

	ev := &Event{
		Timestamp: r.Time,
		Reading:   r,
		Presence:  m.state,
	}
	if m.state == PresenceDetected {
		ev.Type = EventObjectDetected
		m.counts.Detected++
	} else {
		ev.Type = EventObjectCleared
		m.counts.Cleared++
	}
	return ev
}

// State returns the current debounced presence state.
func (m *Monitor) State() Presence {
	return m.state
}

// IsBaselined returns whether the monitor has established a baseline.
func (m *Monitor) IsBaselined() bool {
	return m.state != PresenceUnknown
}

// CountsSnapshot returns the reading counts so far.
func (m *Monitor) CountsSnapshot() Counts {
	return m.counts
}

// StatsSnapshot returns the echo statistics so far.
func (m *Monitor) StatsSnapshot() Stats {
	return m.stats
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (m *Monitor) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if !m.IsBaselined() {
		return nil
	}
	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.counts,
		Stats:     m.stats,
		Presence:  m.state,
	}
}
