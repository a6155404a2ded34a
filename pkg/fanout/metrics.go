package fanout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixchat_fanout_jobs_delivered_total",
		Help: "Notification jobs delivered successfully.",
	})
	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixchat_fanout_jobs_failed_total",
		Help: "Notification jobs whose delivery failed.",
	})
	jobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixchat_fanout_jobs_dropped_total",
		Help: "Notification jobs dropped because the queue was full.",
	})
)
