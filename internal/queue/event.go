// Package queue defines message payloads exchanged over the message broker
// plus the publisher and background consumer that move them.
package queue

// RewardCreditedEvent is published after a completion commits and the
// reward lands on the worker's balance. It carries enough information
// for downstream consumers to notify the user without querying the
// primary database. EventID deduplicates redeliveries.
type RewardCreditedEvent struct {
	EventID    string `json:"event_id"`
	UserID     uint64 `json:"user_id"`
	Message    string `json:"message"`
	CreditedAt string `json:"credited_at"`
}
