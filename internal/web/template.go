package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/range-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"metres": func(v float64) string {
		return fmt.Sprintf("%.3f m", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Range Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.detected { color: green; font-weight: bold; }
.clear { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Range Sensor{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Presence</th><td id="presence" class="{{if eq (printf "%s" .Presence) "DETECTED"}}detected{{else if eq (printf "%s" .Presence) "CLEAR"}}clear{{else}}unknown{{end}}">{{.Presence}}</td></tr>
<tr><th>Distance</th><td id="distance">{{if .Stats.Last.Timeout}}no echo{{else}}{{metres .Stats.Last.Metres}}{{end}}</td></tr>
{{if .Stats.HaveEcho}}<tr><th>Range seen</th><td>{{metres .Stats.Min}} &ndash; {{metres .Stats.Max}}</td></tr>{{end}}
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} &mdash; {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Reading Counts</h2>
<table>
<tr><th>Readings</th><td>{{.Counts.Readings}}</td></tr>
<tr><th>Echoes</th><td>{{.Counts.Echoes}}</td></tr>
<tr><th>Timeouts</th><td>{{.Counts.Timeouts}}</td></tr>
<tr><th>Detected</th><td>{{.Counts.Detected}}</td></tr>
<tr><th>Cleared</th><td>{{.Counts.Cleared}}</td></tr>
<tr><th>Unhandled edges</th><td>{{.UnhandledEdges}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Pins</th><td>trigger {{.Config.PinTrigger}} / echo {{.Config.PinEcho}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Threshold</th><td>{{metres .Config.ThresholdM}} ({{.Config.DebounceCount}} readings)</td></tr>
<tr><th>Speed of sound</th><td>{{.Config.SpeedOfSound}} m/s</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "sensors/range/events";
  var dot = document.getElementById("live-dot");
  var presenceEl = document.getElementById("presence");
  var distanceEl = document.getElementById("distance");

  function setPresence(state) {
    presenceEl.textContent = state;
    presenceEl.className = state === "DETECTED" ? "detected" : state === "CLEAR" ? "clear" : "unknown";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.range) {
        setPresence(msg.range.presence);
        distanceEl.textContent = msg.range.echo ? msg.range.distance_m.toFixed(3) + " m" : "no echo";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
