package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jam_sessions_active",
		Help: "Currently registered jam sessions",
	})

	metricParticipants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jam_participants_active",
		Help: "Currently joined participants across all sessions",
	})

	metricSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jam_sessions_created_total",
		Help: "Total sessions created",
	})

	metricSessionsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jam_sessions_reaped_total",
		Help: "Total empty sessions removed by the reaper",
	})

	MetricSignalMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jam_signal_messages_total",
		Help: "Inbound signaling messages by type",
	}, []string{"type"})

	MetricDeliveriesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jam_deliveries_dropped_total",
		Help: "Broadcast deliveries skipped because the transport was not writable",
	})
)
