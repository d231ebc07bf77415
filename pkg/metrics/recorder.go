// Package metrics mirrors each snapshot into Prometheus gauges.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"ChatDash/pkg/stats"
)

const namespace = "chatdash"

// Recorder exports the latest snapshot. It implements stats.Publisher.
type Recorder struct {
	online            prometheus.Gauge
	activeClients     prometheus.Gauge
	rooms             prometheus.Gauge
	messagesPerMinute prometheus.Gauge
	ticks             prometheus.Counter
	tickPanics        prometheus.Counter
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_online",
			Help:      "1 when the chat server accepted the last TCP probe.",
		}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_clients",
			Help:      "Simulated number of connected clients.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Simulated number of rooms.",
		}),
		messagesPerMinute: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "messages_per_minute",
			Help:      "Simulated messages in the trailing minute.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed sampling ticks.",
		}),
		tickPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_panics_total",
			Help:      "Sampling ticks that panicked and were recovered.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.online, r.activeClients, r.rooms, r.messagesPerMinute, r.ticks, r.tickPanics,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Publish implements stats.Publisher.
func (r *Recorder) Publish(ctx context.Context, snap stats.Snapshot) error {
	if snap.Status == stats.Online {
		r.online.Set(1)
	} else {
		r.online.Set(0)
	}
	r.activeClients.Set(float64(snap.ActiveClientCount))
	r.rooms.Set(float64(snap.RoomCount))
	r.messagesPerMinute.Set(float64(snap.MessagesPerMinute))
	r.ticks.Inc()
	return nil
}

// ObservePanic counts a recovered tick panic. It matches stats.WithPanicHook.
func (r *Recorder) ObservePanic(interface{}) {
	r.tickPanics.Inc()
}
