package model

import "time"

type CustomerEventType string

const (
	CustomerCreated  CustomerEventType = "created"
	CustomerUpdated  CustomerEventType = "updated"
	CustomerDeleted  CustomerEventType = "deleted"
	CustomerImported CustomerEventType = "imported"
)

func (t CustomerEventType) String() string { return string(t) }

// CustomerEvent is the outbox payload relayed to Kafka by Debezium.
type CustomerEvent struct {
	ID         string            `json:"id"` // event ULID
	Type       CustomerEventType `json:"type"`
	CustomerID int64             `json:"customer_id"`
	Customer   *Customer         `json:"customer,omitempty"` // nil for deletes
	OccurredAt time.Time         `json:"occurred_at"`
}

// OutboxRecord is the outbox row that carries one event to Kafka.
type OutboxRecord struct {
	Aggregate   string `db:"aggregate"`
	AggregateID string `db:"aggregate_id"`
	Topic       string `db:"topic"`
	Payload     []byte `db:"payload"`
}
