// Package monitor serves debug views of the frame stream: a live tail of
// emitted frames, an ECharts page of the latest frame and a PNG plot of it.
package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/openbci/internal/frame"
	"github.com/banshee-data/openbci/internal/monitoring"
)

type Monitor struct {
	latest *frame.Latest
	broker *frame.Broker
	logf   monitoring.Logger
}

// New returns a monitor reading the latest frame from latest and tailing
// frames from broker. Either may be nil; the matching routes then answer 503.
func New(latest *frame.Latest, broker *frame.Broker) *Monitor {
	return &Monitor{latest: latest, broker: broker, logf: monitoring.OrDefault(nil)}
}

// SetLogger replaces the diagnostic logger.
func (m *Monitor) SetLogger(l monitoring.Logger) {
	m.logf = monitoring.OrDefault(l)
}

func (m *Monitor) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("chart", "Latest frame chart", http.HandlerFunc(m.handleChart))
	debug.Handle("plot.png", "Latest frame plot (PNG)", http.HandlerFunc(m.handlePlot))

	// Server-Side Events (SSE) with one JSON frame per emission.
	debug.HandleSilentFunc("frames", m.handleFrames)
}

// latestFrame writes an error and returns false when there is nothing to show.
func (m *Monitor) latestFrame(w http.ResponseWriter) (frame.Frame, bool) {
	if m.latest == nil {
		http.Error(w, "frame history is disabled", http.StatusServiceUnavailable)
		return frame.Frame{}, false
	}
	f, ok := m.latest.Get()
	if !ok {
		http.Error(w, "no frame emitted yet", http.StatusNotFound)
		return frame.Frame{}, false
	}
	return f, true
}

// channelsParam reads a comma separated channel list; empty means every EEG
// channel.
func channelsParam(r *http.Request, f frame.Frame) ([]string, error) {
	v := strings.TrimSpace(r.URL.Query().Get("channels"))
	if v == "" {
		return eegColumns(f), nil
	}
	var out []string
	for _, name := range strings.Split(v, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := f.Column(name); !ok {
			return nil, fmt.Errorf("unknown channel %q", name)
		}
		out = append(out, name)
	}
	return out, nil
}

func eegColumns(f frame.Frame) []string {
	var out []string
	for _, c := range f.Columns {
		if strings.HasPrefix(c, "eeg_") {
			out = append(out, c)
		}
	}
	return out
}

func (m *Monitor) handleChart(w http.ResponseWriter, r *http.Request) {
	f, ok := m.latestFrame(w)
	if !ok {
		return
	}
	channels, err := channelsParam(r, f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RenderChart(w, f, channels); err != nil {
		m.logf("failed to render chart: %v", err)
	}
}

func (m *Monitor) handlePlot(w http.ResponseWriter, r *http.Request) {
	f, ok := m.latestFrame(w)
	if !ok {
		return
	}
	channels, err := channelsParam(r, f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	img, err := PlotPNG(f, channels)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to plot frame: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}

func (m *Monitor) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if m.broker == nil {
		http.Error(w, "frame stream is disabled", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := m.broker.Subscribe()
	defer m.broker.Unsubscribe(id)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	w.Write([]byte(": ping\n\n"))
	flush()

	for {
		select {
		case f, ok := <-c:
			if !ok {
				return
			}
			payload, err := json.Marshal(f)
			if err != nil {
				m.logf("failed to encode frame: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flush()
		case <-r.Context().Done():
			return
		}
	}
}
