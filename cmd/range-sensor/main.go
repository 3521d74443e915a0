// Command range-sensor measures distance with an HC-SR04 ultrasonic sensor
// and publishes presence changes to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/range-sensor/internal/gpio"
	"github.com/sweeney/range-sensor/internal/hcsr04"
	"github.com/sweeney/range-sensor/internal/logic"
	"github.com/sweeney/range-sensor/internal/mqtt"
	"github.com/sweeney/range-sensor/internal/status"
	"github.com/sweeney/range-sensor/internal/web"
)

func main() {
	interval := flag.Duration("interval", time.Second, "Measurement interval")
	threshold := flag.Float64("threshold", 1.0, "Presence detection threshold in metres")
	debounceCount := flag.Int("debounce-count", 3, "Consecutive agreeing readings needed to change presence state")
	echoPoll := flag.Duration("echo-poll", 0, "Echo poll granularity within a measurement (0 = sensor default)")
	speedOfSound := flag.Float64("speed-of-sound", hcsr04.SpeedOfSoundDefault, "Speed of sound in m/s used for distance conversion")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	pinTrigger := flag.Int("pin-trigger", gpio.DefaultPinTrigger, "BCM pin number for the trigger output")
	pinEcho := flag.Int("pin-echo", gpio.DefaultPinEcho, "BCM pin number for the echo input")
	printRange := flag.Bool("print-range", false, "Take one measurement, print it, and exit")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)

	flag.Parse()

	ws := resolveWSBroker(*wsBroker, *broker)
	if err := run(*interval, *threshold, *debounceCount, *echoPoll, *speedOfSound, *broker, *heartbeat, *pinTrigger, *pinEcho, *printRange, *httpAddr, ws); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(interval time.Duration, threshold float64, debounceCount int, echoPoll time.Duration, speedOfSound float64, broker string, heartbeat time.Duration, pinTrigger, pinEcho int, printRange bool, httpAddr, wsBroker string) error {
	// Initialize GPIO and the sensor
	conn, err := gpio.NewRealConn()
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}

	disp := hcsr04.NewDispatcher()
	ranger, err := hcsr04.New(conn, disp, pinTrigger, pinEcho)
	if err != nil {
		conn.Close()
		return fmt.Errorf("init sensor: %w", err)
	}
	defer ranger.Close()

	ranger.SetSpeedOfSound(speedOfSound)
	if echoPoll > 0 {
		ranger.SetPollInterval(echoPoll)
	}

	// Print range mode
	if printRange {
		metres, err := ranger.Range()
		if err != nil {
			return fmt.Errorf("measure range: %w", err)
		}
		if metres == 0 {
			fmt.Println("no echo")
		} else {
			fmt.Printf("%.3f m\n", metres)
		}
		return nil
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		IntervalMs:    interval.Milliseconds(),
		ThresholdM:    threshold,
		DebounceCount: debounceCount,
		HeartbeatMs:   heartbeat.Milliseconds(),
		Broker:        broker,
		HTTPPort:      httpAddr,
		WSBroker:      wsBroker,
		PinTrigger:    pinTrigger,
		PinEcho:       pinEcho,
		SpeedOfSound:  speedOfSound,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	log.Printf("started: interval=%v threshold=%.2fm debounce=%d broker=%s heartbeat=%v trigger=%d echo=%d",
		interval, threshold, debounceCount, broker, heartbeat, pinTrigger, pinEcho)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ranger, disp, publisher, publisher, tracker, threshold, debounceCount, heartbeat, time.Now, ticker.C, sigCh)
}

// sensor is the subset of *hcsr04.Ranger the run loop needs; tests substitute
// a scripted implementation.
type sensor interface {
	PulseWidth() (uint32, error)
	SpeedOfSound() float64
}

func runLoop(dev sensor, disp *hcsr04.Dispatcher, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, threshold float64, debounceCount int, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	monitor := logic.NewMonitor(threshold, debounceCount, startTime)

	updateTracker := func() {
		if tracker == nil {
			return
		}
		tracker.Update(monitor.State(), monitor.IsBaselined(), monitor.CountsSnapshot(), monitor.StatsSnapshot())
		if disp != nil {
			tracker.SetUnhandledEdges(disp.UnhandledCount())
		}
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				updateTracker()
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			width, err := dev.PulseWidth()
			if err != nil {
				log.Printf("measurement error: %v", err)
				continue
			}

			reading := logic.Reading{
				Time:       t,
				PulseWidth: width,
				Metres:     dev.SpeedOfSound() * float64(width) / 2e6,
			}

			if event := monitor.Process(reading); event != nil {
				log.Printf("event: %s (%.3fm)", event.Type, event.Reading.Metres)
				if err := publisher.Publish(*event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			if !monitor.IsBaselined() {
				// Still waiting for baseline
				updateTracker()
				continue
			}

			// Check for heartbeat
			if hbData := monitor.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v readings=%d echoes=%d timeouts=%d presence=%s",
					hbData.Uptime, hbData.Counts.Readings, hbData.Counts.Echoes, hbData.Counts.Timeouts, hbData.Presence)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					updateTracker()
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP/LED consumers
			updateTracker()
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
