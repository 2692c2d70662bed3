// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ChatTurnsTotal tracks chat turns by outcome.
	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat turns by outcome",
		},
		[]string{"outcome"},
	)

	// ChatTurnDuration tracks the time spent inside the room critical section.
	ChatTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_turn_duration_seconds",
			Help:    "Chat turn duration including backend retries",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	// LLMRequestDuration tracks single backend attempts.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion attempt duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "result"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// LLMRetriesTotal tracks retried backend attempts by failure kind.
	LLMRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_retries_total",
			Help: "Retried LLM attempts by failure kind",
		},
		[]string{"kind"},
	)

	// PromptTruncationsTotal counts prompts cut down to fit the context budget.
	PromptTruncationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prompt_truncations_total",
			Help: "Prompts truncated to fit the context budget",
		},
	)

	// ContextWindowSize tracks the measured size of built context windows.
	ContextWindowSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "context_window_size",
			Help:    "Size of context windows in budget units",
			Buckets: prometheus.ExponentialBuckets(64, 2, 12),
		},
	)

	// RoomLockWait tracks time spent waiting for a room lock.
	RoomLockWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "room_lock_wait_seconds",
			Help:    "Time spent acquiring a room lock",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		},
		[]string{"result"},
	)

	// RoomLocksActive tracks rooms with a holder or waiter.
	RoomLocksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_locks_active",
			Help: "Rooms with an active lock holder or waiter",
		},
	)

	// RoomsCreatedTotal tracks rooms created.
	RoomsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rooms_created_total",
			Help: "Total rooms created",
		},
		[]string{"mode"},
	)

	// MessagesTotal tracks total committed messages.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages committed",
		},
		[]string{"role"},
	)

	// EventPublishFailures counts journal events that could not be published.
	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Room events that failed to publish",
		},
		[]string{"type"},
	)

	// EventDecodeFailures counts journal entries skipped on replay.
	EventDecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_decode_failures_total",
			Help: "Journal entries that could not be decoded as room events",
		},
	)

	// LockReleaseFailures counts room locks that could not be released and
	// are left to expire.
	LockReleaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "room_lock_release_failures_total",
			Help: "Room locks that failed to release",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMAttempt records metrics for one backend completion attempt.
func RecordLLMAttempt(provider, result string, duration float64) {
	LLMRequestDuration.WithLabelValues(provider, result).Observe(duration)
}

// RecordLLMTokens records token usage of a completion.
func RecordLLMTokens(model string, tokensIn, tokensOut int) {
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordTurn records the outcome of a chat turn.
func RecordTurn(outcome string, duration float64) {
	ChatTurnsTotal.WithLabelValues(outcome).Inc()
	ChatTurnDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordLockWait records how long a room lock acquisition took.
func RecordLockWait(result string, duration float64) {
	RoomLockWait.WithLabelValues(result).Observe(duration)
}
