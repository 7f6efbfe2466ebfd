// Package metrics содержит Prometheus коллекторы движка согласованности.
// Коллекторы регистрируются в default registry при импорте пакета.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTracked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophsync_requests_tracked_total",
		Help: "Mutations registered by the request tracker",
	}, []string{"entity_type", "source"})

	RequestsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophsync_requests_dropped_total",
		Help: "Mutations accepted but not registered because the loop guard tripped",
	}, []string{"entity_type", "guard"})

	Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophsync_conflicts_total",
		Help: "Conflicts resolved, by strategy",
	}, []string{"entity_type", "strategy"})

	OptimisticUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophsync_optimistic_updates_total",
		Help: "Optimistic update lifecycle transitions",
	}, []string{"entity_type", "state"})

	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophsync_retries_total",
		Help: "Retry attempts of rolled back updates, by outcome",
	}, []string{"entity_type", "outcome"})

	ArbitrationRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophsync_arbitration_rejected_total",
		Help: "Push updates or local responses dropped as stale",
	}, []string{"entity_type", "channel"})

	SyncMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophsync_sync_messages_total",
		Help: "Cross-instance sync messages, by direction and kind",
	}, []string{"direction", "kind"})

	SelfEchoDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gophsync_sync_self_echo_dropped_total",
		Help: "Inbound sync messages discarded because they carry the local origin id",
	})

	DedupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gophsync_dedup_hits_total",
		Help: "Deduplicated executions served from an in-flight or recent result",
	})

	SubscriberPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophsync_subscriber_panics_total",
		Help: "Subscriber callbacks that panicked and were recovered",
	}, []string{"entity_type"})

	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gophsync_cache_entries",
		Help: "Current number of entries in the TTL cache",
	})

	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophsync_cache_evictions_total",
		Help: "Cache entries removed, by reason",
	}, []string{"reason"})

	ServerCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophsync_server_commits_total",
		Help: "Entity mutations committed by the authority",
	}, []string{"entity_type", "operation"})

	ServerConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gophsync_server_ws_connections",
		Help: "Open websocket connections on the authority",
	}, []string{"channel"})
)
