package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/metrics"
	"github.com/fuaSmart/medical-project/internal/repository"
)

// ErrStreamClosed is returned by Listen when the source stops delivering events
// while the context is still live.
var ErrStreamClosed = errors.New("source event stream closed")

// Coordinator turns source events into persisted raw messages, one at a time.
type Coordinator struct {
	source Source
	gate   *MediaGate
	store  MessageStore
	logger *zap.Logger
	now    func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(source Source, gate *MediaGate, store MessageStore, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		source: source,
		gate:   gate,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Backfill walks the history of each channel in turn, persisting up to limit
// messages per channel (limit <= 0 is unbounded). A channel that cannot be read is
// logged and skipped. It returns early only on cancellation or when the database
// stays unreachable.
func (c *Coordinator) Backfill(ctx context.Context, channels []string, limit int) error {
	c.logger.Info("Attempting to scrape channels", zap.Int("channels", len(channels)), zap.Int("limit", limit))

	for _, channel := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.logger.Info("Scraping messages", zap.String("channel", channel), zap.Int("limit", limit))
		scraped := 0
		err := c.source.History(ctx, channel, limit, func(ev Event) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.handle(ctx, ev); err != nil {
				return err
			}
			scraped++
			return nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, repository.ErrConnectionExhausted) {
				return err
			}
			c.logger.Error("An error occurred while scraping channel", zap.String("channel", channel), zap.Error(err))
			continue
		}
		c.logger.Info("Finished scraping channel", zap.String("channel", channel), zap.Int("messages", scraped))
	}

	c.logger.Info("All scraping tasks completed.")
	return nil
}

// Listen consumes live events until ctx is cancelled, handling each one fully
// before taking the next. It returns ctx.Err() on shutdown.
func (c *Coordinator) Listen(ctx context.Context, channels []string) error {
	events, err := c.source.Subscribe(ctx, channels)
	if err != nil {
		return fmt.Errorf("subscribe to channels: %w", err)
	}
	c.logger.Info("Listening for new messages", zap.Strings("channels", channels))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Listener stopped.")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return ErrStreamClosed
			}
			if err := c.handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// handle processes one event. Per-message failures are logged and swallowed; only
// cancellation and connection exhaustion are returned.
func (c *Coordinator) handle(ctx context.Context, ev Event) error {
	log := c.logger.With(zap.Int64("message_id", ev.MessageID), zap.String("channel", ev.ChannelUsername))

	asset := c.gate.Acquire(ctx, ev.ChannelUsername, ev.MessageID, ev.Media)
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := Normalize(ev, asset, c.now())
	if err != nil {
		log.Error("Failed to normalize message", zap.Error(err))
		metrics.MessagesIngested.WithLabelValues(ev.ChannelUsername, "failed").Inc()
		return nil
	}

	inserted, err := c.store.UpsertRawMessage(ctx, msg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, repository.ErrConnectionExhausted) {
			log.Error("Database unavailable, stopping ingestion", zap.Error(err))
			return err
		}
		log.Error("Error inserting message", zap.Error(err))
		metrics.MessagesIngested.WithLabelValues(ev.ChannelUsername, "failed").Inc()
		return nil
	}

	if inserted {
		metrics.MessagesIngested.WithLabelValues(ev.ChannelUsername, "inserted").Inc()
	} else {
		log.Debug("Message already stored, ignored")
		metrics.MessagesIngested.WithLabelValues(ev.ChannelUsername, "duplicate").Inc()
	}
	return nil
}
