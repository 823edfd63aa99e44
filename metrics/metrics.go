package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Messages accepted by SendMessage / SendMessageBatch
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memq_messages_sent_total",
			Help: "Total number of messages accepted",
		},
		[]string{"queue"},
	)

	// Messages deduplicated inside the FIFO window
	MessagesDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memq_messages_deduplicated_total",
			Help: "Total number of FIFO sends dropped as duplicates",
		},
		[]string{"queue"},
	)

	// Messages delivered by ReceiveMessage
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memq_messages_received_total",
			Help: "Total number of messages delivered",
		},
		[]string{"queue"},
	)

	// Messages acknowledged by DeleteMessage
	MessagesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memq_messages_deleted_total",
			Help: "Total number of messages deleted",
		},
		[]string{"queue"},
	)

	// Messages transferred to a dead-letter queue during receive
	MessagesRedriven = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memq_messages_redriven_total",
			Help: "Total number of messages moved to a dead-letter queue",
		},
		[]string{"queue"},
	)

	// Messages dropped after MessageRetentionPeriod
	MessagesExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memq_messages_expired_total",
			Help: "Total number of messages dropped by retention",
		},
		[]string{"queue"},
	)

	// Messages transferred by message move tasks
	MessagesMoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memq_messages_moved_total",
			Help: "Total number of messages moved by move tasks",
		},
	)

	// Purges
	QueuePurges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memq_queue_purges_total",
			Help: "Total number of successful PurgeQueue calls",
		},
	)

	// Live queues
	Queues = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memq_queues",
			Help: "Number of queues in the registry",
		},
	)

	// Move tasks currently running
	MoveTasksRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memq_move_tasks_running",
			Help: "Number of running message move tasks",
		},
	)

	// Long-poll wait duration
	ReceiveWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memq_receive_wait_seconds",
			Help:    "Time ReceiveMessage calls spent waiting for messages",
			Buckets: prometheus.DefBuckets,
		},
	)
)
