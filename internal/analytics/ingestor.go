package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vadimbarashkov/shortly/internal/database"
	"github.com/vadimbarashkov/shortly/internal/models"
)

// ClickStore is the slice of the link repository the ingestor needs:
// additive counter reconciliation only.
type ClickStore interface {
	IncrementClicks(ctx context.Context, shortCode string, delta int64) error
}

// CodeValidator rejects request paths that can't syntactically carry a
// short code, before the store is ever consulted.
type CodeValidator interface {
	Valid(code string) bool
}

// Config tunes the stream consumer. Stream, Subject and Durable identify
// the JetStream assets; they are configuration, never hardcoded.
type Config struct {
	Stream       string
	Subject      string
	Durable      string
	DeliverAll   bool
	BatchSize    int
	BatchTimeout time.Duration
	StoreTimeout time.Duration
}

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 5 * time.Second
	defaultStoreTimeout = 3 * time.Second
)

// Ingestor consumes raw access events from JetStream and reconciles them
// into click counters. Delivery is at-least-once: a batch is acknowledged
// only after it has been fully handled, so a crash replays the whole
// batch. Replays over-count, which the additive counter tolerates.
type Ingestor struct {
	sub     *nats.Subscription
	store   ClickStore
	codes   CodeValidator
	monitor *Monitor
	logger  *slog.Logger
	cfg     Config
}

// NewIngestor binds a durable pull consumer to the access event stream,
// creating the stream if it doesn't exist yet.
func NewIngestor(conn *nats.Conn, store ClickStore, codes CodeValidator, monitor *Monitor, logger *slog.Logger, cfg Config) (*Ingestor, error) {
	const op = "analytics.NewIngestor"

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get jetstream context: %w", op, err)
	}

	if _, err := js.StreamInfo(cfg.Stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return nil, fmt.Errorf("%s: failed to look up stream: %w", op, err)
		}

		_, err = js.AddStream(&nats.StreamConfig{
			Name:      cfg.Stream,
			Subjects:  []string{cfg.Subject},
			Storage:   nats.FileStorage,
			Retention: nats.LimitsPolicy,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: failed to create stream: %w", op, err)
		}
	}

	deliver := nats.DeliverNew()
	if cfg.DeliverAll {
		deliver = nats.DeliverAll()
	}

	sub, err := js.PullSubscribe(cfg.Subject, cfg.Durable,
		nats.BindStream(cfg.Stream),
		nats.ManualAck(),
		nats.AckExplicit(),
		deliver,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to subscribe: %w", op, err)
	}

	return &Ingestor{
		sub:     sub,
		store:   store,
		codes:   codes,
		monitor: monitor,
		logger:  logger,
		cfg:     cfg,
	}, nil
}

// Run fetches and processes batches until ctx is done.
func (i *Ingestor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := i.sub.Fetch(i.cfg.BatchSize, nats.MaxWait(i.cfg.BatchTimeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			i.logger.Error("failed to fetch access events", slog.Any("err", err))
			continue
		}

		i.processBatch(ctx, msgs)
	}
}

// processBatch aggregates per-code deltas, applies them, then
// acknowledges every message. A failure for one event never blocks the
// rest of the batch; the event is logged and dropped.
func (i *Ingestor) processBatch(ctx context.Context, msgs []*nats.Msg) {
	byCode := make(map[string][]*models.AccessEvent)

	for _, msg := range msgs {
		ev, err := ParseAccessEvent(string(msg.Data))
		if err != nil {
			i.logger.Error("skipping malformed access record", slog.Any("err", err))
			continue
		}

		code := CodeFromPath(ev.RequestPath)
		if code == "" || !i.codes.Valid(code) {
			i.logger.Warn("invalid short code in access stream",
				slog.String("path", ev.RequestPath),
				slog.String("client_ip", ev.ClientIP),
			)
			if i.monitor != nil {
				i.monitor.Observe(ev.Timestamp)
			}
			continue
		}

		byCode[code] = append(byCode[code], ev)
	}

	for code, events := range byCode {
		delta := int64(len(events))

		opCtx, cancel := context.WithTimeout(ctx, i.cfg.StoreTimeout)
		err := i.store.IncrementClicks(opCtx, code, delta)
		cancel()

		if err == nil {
			continue
		}

		if errors.Is(err, database.ErrLinkNotFound) {
			// One warning per event, so log volume tracks the stream.
			for _, ev := range events {
				i.logger.Warn("invalid short code in access stream",
					slog.String("short_code", code),
					slog.String("client_ip", ev.ClientIP),
				)
				if i.monitor != nil {
					i.monitor.Observe(ev.Timestamp)
				}
			}
			continue
		}

		i.logger.Error("failed to reconcile clicks",
			slog.String("short_code", code),
			slog.Int64("events", delta),
			slog.Any("err", err),
		)
	}

	for _, msg := range msgs {
		if err := msg.Ack(); err != nil {
			i.logger.Error("failed to ack access event", slog.Any("err", err))
		}
	}
}
