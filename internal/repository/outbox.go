package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmoiron/sqlx"
)

const (
	CustomerAggregate   = "customer"
	CustomerEventsTopic = "customers.events"
)

// OutboxRepository defines persistence methods for the outbox table.
type OutboxRepository interface {
	// InsertCustomerEvent writes one event row. With a nil tx it opens and
	// commits its own transaction.
	InsertCustomerEvent(ctx context.Context, tx *sqlx.Tx, ev model.CustomerEvent) error
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

// InsertCustomerEvent adds an event row to outbox. Debezium Outbox SMT picks
// it up and publishes to Kafka based on the `topic` column.
func (r *OutboxRepositoryImpl) InsertCustomerEvent(ctx context.Context, tx *sqlx.Tx, ev model.CustomerEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal customer event: %w", err)
	}

	row := model.OutboxRecord{
		Aggregate:   CustomerAggregate,
		AggregateID: strconv.FormatInt(ev.CustomerID, 10),
		Topic:       CustomerEventsTopic,
		Payload:     payload,
	}

	const q = `
		INSERT INTO outbox (aggregate, aggregate_id, topic, payload, created_at)
		VALUES (:aggregate, :aggregate_id, :topic, :payload, NOW())
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, q, row)
		return err
	})
}
