package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmoiron/sqlx"
)

// CustomerEventsRepository stores change events in ClickHouse.
type CustomerEventsRepository interface {
	InsertBatch(ctx context.Context, events []model.CustomerEvent) error
}

type chCustomerEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHCustomerEventsRepository(ch *sqlx.DB) CustomerEventsRepository {
	return &chCustomerEventsRepository{ch: ch}
}

// InsertBatch sends events as one ClickHouse block. Redelivered events are
// collapsed by the ReplacingMergeTree key (event_id).
func (r *chCustomerEventsRepository) InsertBatch(ctx context.Context, events []model.CustomerEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO customer_events
		    (event_id, type, customer_id, name, email, phone, occurred_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare customer_events insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		var name, email, phone string
		if ev.Customer != nil {
			name, email, phone = ev.Customer.Name, ev.Customer.Email, ev.Customer.Phone
		}
		if _, err := stmt.ExecContext(ctx,
			ev.ID, ev.Type.String(), ev.CustomerID, name, email, phone, ev.OccurredAt.UTC(),
		); err != nil {
			return fmt.Errorf("append event %s: %w", ev.ID, err)
		}
	}

	return tx.Commit()
}
