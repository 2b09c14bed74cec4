package worker

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/customers-api/internal/kafka"
	"github.com/jmehdipour/customers-api/internal/logger"
	"github.com/jmehdipour/customers-api/internal/metrics"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmehdipour/customers-api/internal/repository"
	"go.uber.org/zap"
)

// EventSource is the consumer side of the change-event topic.
type EventSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Audit copies customer change events from Kafka into ClickHouse:
// - fetches outbox events relayed by Debezium,
// - buffers them until BatchSize or BatchWait,
// - inserts the batch, then commits the offsets it covers.
//
// A failed insert keeps the batch and retries, so delivery is at-least-once.
type Audit struct {
	Source EventSource
	Events repository.CustomerEventsRepository

	BatchSize int
	BatchWait time.Duration
	RetryWait time.Duration
}

func NewAudit(src EventSource, events repository.CustomerEventsRepository) *Audit {
	return &Audit{
		Source:    src,
		Events:    events,
		BatchSize: 500,
		BatchWait: time.Second,
		RetryWait: time.Second,
	}
}

type auditBatch struct {
	events []model.CustomerEvent
	msgs   []kafka.Message
}

func (b *auditBatch) reset() {
	b.events = b.events[:0]
	b.msgs = b.msgs[:0]
}

// Run blocks until ctx is cancelled, then flushes what it holds.
func (w *Audit) Run(ctx context.Context) error {
	if w.Source == nil || w.Events == nil {
		return errors.New("audit: source and events repository are required")
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = time.Second
	}
	if w.RetryWait <= 0 {
		w.RetryWait = time.Second
	}

	msgCh := make(chan kafka.Message, w.BatchSize)
	go w.fetch(ctx, msgCh)

	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var b auditBatch
	for {
		// a full batch must land before reading more
		if len(b.msgs) >= w.BatchSize {
			if w.flush(ctx, &b) {
				continue
			}
			select {
			case <-ctx.Done():
				return w.shutdown(ctx, &b)
			case <-time.After(w.RetryWait):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return w.shutdown(ctx, &b)

		case m, ok := <-msgCh:
			if !ok {
				return w.shutdown(ctx, &b)
			}
			w.add(&b, m)

		case <-tick.C:
			w.flush(ctx, &b)
		}
	}
}

func (w *Audit) fetch(ctx context.Context, out chan<- kafka.Message) {
	defer close(out)
	for {
		m, err := w.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.Warn("audit: kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
}

// add buffers m. Undecodable messages are still committed with the batch.
func (w *Audit) add(b *auditBatch, m kafka.Message) {
	b.msgs = append(b.msgs, m)

	ev, err := decodeEvent(m.Value)
	if err != nil {
		metrics.AuditEventsTotal.WithLabelValues("malformed").Inc()
		logger.Log.Warn("audit: skipping malformed event",
			zap.Error(err),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		return
	}
	b.events = append(b.events, ev)
}

// flush inserts the batch and commits its offsets. It reports whether the
// batch was cleared.
func (w *Audit) flush(ctx context.Context, b *auditBatch) bool {
	if len(b.msgs) == 0 {
		return true
	}

	if err := w.Events.InsertBatch(ctx, b.events); err != nil {
		metrics.AuditEventsTotal.WithLabelValues("failed").Add(float64(len(b.events)))
		logger.Log.Error("audit: insert batch failed", zap.Error(err), zap.Int("events", len(b.events)))
		return false
	}
	metrics.AuditEventsTotal.WithLabelValues("stored").Add(float64(len(b.events)))

	if err := w.Source.Commit(ctx, b.msgs...); err != nil {
		// rows are already stored; a redelivery is collapsed by event_id
		logger.Log.Error("audit: commit offsets failed", zap.Error(err))
	}

	logger.Log.Debug("audit: flushed", zap.Int("events", len(b.events)), zap.Int("messages", len(b.msgs)))
	b.reset()
	return true
}

func (w *Audit) shutdown(ctx context.Context, b *auditBatch) error {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	w.flush(fctx, b)
	return nil
}

// decodeEvent accepts the event object itself or, as Debezium emits it for
// non-expanded payloads, a JSON string holding it.
func decodeEvent(value []byte) (model.CustomerEvent, error) {
	var ev model.CustomerEvent

	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return ev, errors.New("empty message")
	}
	if value[0] == '"' {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return ev, err
		}
		value = []byte(s)
	}

	if err := json.Unmarshal(value, &ev); err != nil {
		return ev, err
	}
	if ev.ID == "" || ev.Type == "" {
		return ev, errors.New("event without id or type")
	}
	return ev, nil
}
