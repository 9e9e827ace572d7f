package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages accepted by POST /api/messages",
	}, []string{"type"})

	UploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_uploads_total",
		Help: "Attachments accepted by POST /api/upload",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_active_connections",
		Help: "Active websocket connections",
	})
)
