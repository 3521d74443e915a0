package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/range-sensor/internal/logic"
)

func sampleEvent() logic.Event {
	return logic.Event{
		Timestamp: time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC),
		Type:      logic.EventObjectDetected,
		Presence:  logic.PresenceDetected,
		Reading: logic.Reading{
			Time:       time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC),
			PulseWidth: 1000,
			Metres:     0.1715,
		},
	}
}

func TestFormatPayload(t *testing.T) {
	data, err := FormatPayload(sampleEvent())
	if err != nil {
		t.Fatalf("FormatPayload: %v", err)
	}

	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	r := payload.Range
	if r.Timestamp != "2026-08-01T12:30:00Z" {
		t.Errorf("timestamp: got %q", r.Timestamp)
	}
	if r.Event != "OBJECT_DETECTED" {
		t.Errorf("event: got %q", r.Event)
	}
	if r.Presence != "DETECTED" {
		t.Errorf("presence: got %q", r.Presence)
	}
	if r.DistanceM != 0.1715 {
		t.Errorf("distance: got %v", r.DistanceM)
	}
	if r.PulseWidthUS != 1000 {
		t.Errorf("pulse width: got %d", r.PulseWidthUS)
	}
	if !r.Echo {
		t.Error("expected echo true")
	}
}

func TestFormatPayloadTimeout(t *testing.T) {
	ev := logic.Event{
		Timestamp: time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC),
		Type:      logic.EventObjectCleared,
		Presence:  logic.PresenceClear,
		Reading:   logic.Reading{Time: time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)},
	}

	data, err := FormatPayload(ev)
	if err != nil {
		t.Fatalf("FormatPayload: %v", err)
	}

	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Range.Echo {
		t.Error("expected echo false for a timeout reading")
	}
	if payload.Range.DistanceM != 0 {
		t.Errorf("expected distance 0 for a timeout reading, got %v", payload.Range.DistanceM)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	ev := SystemEvent{
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	data, err := FormatSystemPayload(ev)
	if err != nil {
		t.Fatalf("FormatSystemPayload: %v", err)
	}

	var payload SystemPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.System.Event != "SHUTDOWN" {
		t.Errorf("event: got %q", payload.System.Event)
	}
	if payload.System.Reason != "SIGTERM" {
		t.Errorf("reason: got %q", payload.System.Reason)
	}
	if payload.System.Timestamp != "2026-08-01T12:00:00Z" {
		t.Errorf("timestamp: got %q", payload.System.Timestamp)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	ev := SystemEvent{
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Event:     "STARTUP",
	}

	data, err := FormatSystemPayload(ev)
	if err != nil {
		t.Fatalf("FormatSystemPayload: %v", err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["system"]["reason"]; ok {
		t.Error("expected reason to be omitted when empty")
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"system":{"event":"HEARTBEAT","custom":true}}`)
	ev := SystemEvent{Event: "HEARTBEAT", RawPayload: raw}

	data, err := FormatSystemPayload(ev)
	if err != nil {
		t.Fatalf("FormatSystemPayload: %v", err)
	}
	if string(data) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", data)
	}
}

func TestFakePublisherRecords(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(sampleEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	if len(f.Events) != 1 || f.Events[0].Type != logic.EventObjectDetected {
		t.Errorf("unexpected events: %+v", f.Events)
	}
	if len(f.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(f.Payloads))
	}
	if len(f.SystemEvents) != 1 || f.SystemEvents[0].Event != "STARTUP" {
		t.Errorf("unexpected system events: %+v", f.SystemEvents)
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	boom := errors.New("boom")

	f.PublishError = boom
	if err := f.Publish(sampleEvent()); !errors.Is(err, boom) {
		t.Errorf("expected injected publish error, got %v", err)
	}
	if len(f.Events) != 0 {
		t.Error("failed publish should not record the event")
	}

	f.PublishSystemError = boom
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); !errors.Is(err, boom) {
		t.Errorf("expected injected system publish error, got %v", err)
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(sampleEvent())
	f.Close()
	f.Connected = true

	f.Reset()

	if len(f.Events) != 0 || len(f.Payloads) != 0 || f.Closed || f.Connected {
		t.Error("Reset should clear all recorded state")
	}
}
