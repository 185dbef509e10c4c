package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campus_events"

// Registry holds every collector this service exposes.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	// RSVPTotal counts RSVP and cancellation attempts by outcome.
	RSVPTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rsvp_total",
			Help:      "RSVP and cancellation attempts by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	WebsocketConnections = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Currently connected notifier sockets",
		},
	)

	BroadcastsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Notifier broadcasts by message and scope",
		},
		[]string{"event", "scope"},
	)

	BroadcastDropsTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_drops_total",
			Help:      "Messages dropped because a subscriber buffer was full",
		},
	)

	AnnouncementsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announcements_total",
			Help:      "Event announcement email jobs by result",
		},
		[]string{"result"},
	)
)

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Recorder adapts the collectors to the interfaces the services and the
// notifier hub accept.
type Recorder struct{}

func (Recorder) ObserveRSVP(action, outcome string) {
	RSVPTotal.WithLabelValues(action, outcome).Inc()
}

func (Recorder) ObserveAnnouncement(result string, n int) {
	AnnouncementsTotal.WithLabelValues(result).Add(float64(n))
}

func (Recorder) SetConnections(n int) {
	WebsocketConnections.Set(float64(n))
}

func (Recorder) ObserveBroadcast(event, scope string, _, dropped int) {
	BroadcastsTotal.WithLabelValues(event, scope).Inc()
	if dropped > 0 {
		BroadcastDropsTotal.Add(float64(dropped))
	}
}
