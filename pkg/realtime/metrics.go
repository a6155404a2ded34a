package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pixchat_ws_connections_open",
		Help: "Open websocket connections.",
	})
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixchat_ws_events_published_total",
		Help: "Chat events routed to connected clients.",
	}, []string{"kind"})
	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixchat_ws_frames_dropped_total",
		Help: "Outbound frames dropped on slow connections.",
	})
)
