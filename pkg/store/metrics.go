package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	threadsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixchat_store_threads_created_total",
		Help: "Chat threads created.",
	})
	messagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixchat_store_messages_appended_total",
		Help: "Messages appended to threads.",
	})
	messagesMarkedRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixchat_store_messages_marked_read_total",
		Help: "Messages transitioned from unread to read.",
	})
)
