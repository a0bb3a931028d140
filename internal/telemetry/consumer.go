package telemetry

import (
	"context"
	"time"

	"github.com/BaSui01/hyperinfer/internal/metrics"
	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	initialBackoff     = 1 * time.Second
	maxBackoff         = 60 * time.Second
	readCount          = int64(10)
	readBlock          = 5 * time.Second
	claimBatchSize     = int64(100)
	claimIdleThreshold = 10 * time.Minute
	lagReportInterval  = 15 * time.Second
)

// Handler processes one decoded usage record. A non-nil return leaves the
// stream entry unacknowledged so it is redelivered (and eventually
// reclaimed via AUTOCLAIM); returning nil acknowledges it.
type Handler func(ctx context.Context, record *model.UsageRecord) error

// Consumer drains the telemetry stream through a durable consumer group
// with a connect/backoff/read/ack loop, plus a pending-entry AUTOCLAIM
// recovery phase for entries left unacked by a crashed or stalled reader.
type Consumer struct {
	store     *store.Store
	logger    *zap.Logger
	consumer  string
	streamKey string
	groupName string
	metrics   *metrics.Collector
}

// NewConsumer builds a Consumer with a unique consumer name
// ("consumer-<uuid>") so multiple replicas never collide within the group.
func NewConsumer(st *store.Store, logger *zap.Logger) *Consumer {
	return &Consumer{
		store:     st,
		logger:    logger.With(zap.String("component", "telemetry-consumer")),
		consumer:  "consumer-" + uuid.NewString(),
		streamKey: StreamKey,
		groupName: ConsumerGroup,
	}
}

// WithMetrics attaches a Collector; ReportLag publishes the group's pending
// backlog to it on a fixed interval. Returns c for chaining at construction.
func (c *Consumer) WithMetrics(collector *metrics.Collector) *Consumer {
	c.metrics = collector
	return c
}

// ReportLag polls the consumer group's pending-entries count every
// lagReportInterval and records it via RecordTelemetryConsumerLag, until ctx
// is cancelled. It is a no-op if no Collector was attached with WithMetrics.
// Run it in its own goroutine alongside Run.
func (c *Consumer) ReportLag(ctx context.Context) {
	if c.metrics == nil {
		return
	}

	ticker := time.NewTicker(lagReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := c.store.PendingCount(ctx, c.streamKey, c.groupName)
			if err != nil {
				c.logger.Warn("failed to read pending count", zap.Error(err))
				continue
			}
			c.metrics.RecordTelemetryConsumerLag(c.streamKey, c.groupName, count)
		}
	}
}

// Run drives the consumer loop until ctx is cancelled. Every accepted
// record is passed to handle; parse failures are acknowledged immediately
// (poison-pill isolation) and never reach handle.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := c.store.EnsureGroup(ctx, c.streamKey, c.groupName, "0"); err != nil {
			c.logger.Warn("failed to ensure consumer group, backing off", zap.Error(err), zap.Duration("backoff", backoff))
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if err := c.recoverPending(ctx, handle); err != nil {
			c.logger.Warn("pending-entry recovery failed, backing off", zap.Error(err), zap.Duration("backoff", backoff))
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			streams, err := c.store.ReadGroup(ctx, c.streamKey, c.groupName, c.consumer, readCount, readBlock)
			if err != nil {
				if err == redis.Nil {
					backoff = initialBackoff
					continue
				}
				c.logger.Warn("read group failed, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
				if !sleepOrDone(ctx, backoff) {
					return ctx.Err()
				}
				backoff = nextBackoff(backoff)
				break
			}

			backoff = initialBackoff
			c.handleStreams(ctx, streams, handle)
		}
	}
}

// recoverPending scans the group's pending-entries list from the start and
// reclaims anything idle for at least claimIdleThreshold, handling each
// reclaimed entry exactly like a freshly read one before moving the cursor
// forward. It stops once the cursor returns to "0".
func (c *Consumer) recoverPending(ctx context.Context, handle Handler) error {
	cursor := "0"
	for {
		messages, next, err := c.store.AutoClaim(ctx, c.streamKey, c.groupName, c.consumer, claimIdleThreshold, cursor, claimBatchSize)
		if err != nil {
			return err
		}

		for _, msg := range messages {
			c.handleEntry(ctx, msg.ID, msg.Values, handle)
		}

		cursor = next
		if cursor == "0" {
			return nil
		}
	}
}

func (c *Consumer) handleStreams(ctx context.Context, streams []redis.XStream, handle Handler) {
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.handleEntry(ctx, msg.ID, msg.Values, handle)
		}
	}
}

func (c *Consumer) handleEntry(ctx context.Context, id string, fields map[string]interface{}, handle Handler) {
	record, err := parseEntry(fields)
	if err != nil {
		c.logger.Warn("dropping malformed telemetry entry", zap.String("entry_id", id), zap.Error(err))
		if ackErr := c.store.Ack(ctx, c.streamKey, c.groupName, id); ackErr != nil {
			c.logger.Warn("failed to ack malformed entry", zap.String("entry_id", id), zap.Error(ackErr))
		}
		return
	}

	if err := handle(ctx, record); err != nil {
		c.logger.Warn("telemetry handler failed, leaving entry unacknowledged",
			zap.String("entry_id", id), zap.String("key", maskKey(record.Key)), zap.Error(err))
		return
	}

	if err := c.store.Ack(ctx, c.streamKey, c.groupName, id); err != nil {
		c.logger.Warn("failed to ack handled entry", zap.String("entry_id", id), zap.Error(err))
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// sleepOrDone waits for d or until ctx is cancelled, whichever comes first.
// It returns false when ctx was cancelled.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
