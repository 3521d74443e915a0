package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string       `json:"event,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	Presence       string       `json:"presence"`
	Ready          bool         `json:"ready"`
	Range          *RangeJSON   `json:"range,omitempty"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	StartTime      string       `json:"start_time"`
	Timestamp      string       `json:"timestamp"`
	MQTT           MQTTStatus   `json:"mqtt"`
	Counts         CountsJSON   `json:"reading_counts"`
	UnhandledEdges uint64       `json:"unhandled_edges"`
	Network        *NetworkJSON `json:"network,omitempty"`
	Config         ConfigJSON   `json:"config"`
}

// RangeJSON reports the last echo and the observed range bounds.
type RangeJSON struct {
	LastM        float64 `json:"last_m"`
	LastEcho     bool    `json:"last_echo"`
	PulseWidthUS uint32  `json:"pulse_width_us"`
	MinM         float64 `json:"min_m"`
	MaxM         float64 `json:"max_m"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of reading counts.
type CountsJSON struct {
	Readings int `json:"readings"`
	Echoes   int `json:"echoes"`
	Timeouts int `json:"timeouts"`
	Detected int `json:"detected"`
	Cleared  int `json:"cleared"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	IntervalMs    int64   `json:"interval_ms"`
	ThresholdM    float64 `json:"threshold_m"`
	DebounceCount int     `json:"debounce_count"`
	HeartbeatMs   int64   `json:"heartbeat_ms"`
	Broker        string  `json:"broker"`
	HTTPPort      string  `json:"http_port"`
	WSBroker      string  `json:"ws_broker,omitempty"`
	PinTrigger    int     `json:"pin_trigger"`
	PinEcho       int     `json:"pin_echo"`
	SpeedOfSound  float64 `json:"speed_of_sound"`
}

func buildInner(snap Snapshot) StatusInner {
	presence := string(snap.Presence)
	if presence == "" {
		presence = "UNKNOWN"
	}

	inner := StatusInner{
		Presence:       presence,
		Ready:          snap.Baselined,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		UnhandledEdges: snap.UnhandledEdges,
		Counts: CountsJSON{
			Readings: snap.Counts.Readings,
			Echoes:   snap.Counts.Echoes,
			Timeouts: snap.Counts.Timeouts,
			Detected: snap.Counts.Detected,
			Cleared:  snap.Counts.Cleared,
		},
		Config: ConfigJSON{
			IntervalMs:    snap.Config.IntervalMs,
			ThresholdM:    snap.Config.ThresholdM,
			DebounceCount: snap.Config.DebounceCount,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPPort:      snap.Config.HTTPPort,
			WSBroker:      snap.Config.WSBroker,
			PinTrigger:    snap.Config.PinTrigger,
			PinEcho:       snap.Config.PinEcho,
			SpeedOfSound:  snap.Config.SpeedOfSound,
		},
	}

	if snap.Counts.Readings > 0 {
		inner.Range = &RangeJSON{
			LastM:        snap.Stats.Last.Metres,
			LastEcho:     !snap.Stats.Last.Timeout(),
			PulseWidthUS: snap.Stats.Last.PulseWidth,
			MinM:         snap.Stats.Min,
			MaxM:         snap.Stats.Max,
		}
	}

	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
