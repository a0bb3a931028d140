package telemetry

import (
	"context"
	"time"

	"github.com/BaSui01/hyperinfer/internal/model"
	"github.com/BaSui01/hyperinfer/internal/store"
	"go.uber.org/zap"
)

// Producer appends usage records to the telemetry stream. Record is
// fire-and-forget: it never blocks or fails the caller's
// request path. If st is nil the producer runs in degraded mode, logging
// at debug level and dropping every record.
type Producer struct {
	store  *store.Store
	logger *zap.Logger
}

// NewProducer builds a Producer. Pass a nil store to run in degraded mode.
func NewProducer(st *store.Store, logger *zap.Logger) *Producer {
	return &Producer{store: st, logger: logger.With(zap.String("component", "telemetry-producer"))}
}

// Record asynchronously appends a usage record for key/model. The caller's
// request path never observes a failure here: append errors are logged
// and swallowed, never propagated to the caller.
func (p *Producer) Record(key, modelName string, inputTokens, outputTokens int, responseTimeMs int64) {
	if p.store == nil {
		p.logger.Debug("telemetry producer has no store, dropping record",
			zap.String("key", maskKey(key)), zap.String("model", modelName))
		return
	}

	record := model.UsageRecord{
		Key:            key,
		Model:          modelName,
		InputTokens:    uint32(inputTokens),
		OutputTokens:   uint32(outputTokens),
		ResponseTimeMs: uint64(responseTimeMs),
		TimestampMs:    uint64(time.Now().UnixMilli()),
	}

	go p.appendAsync(record)
}

func (p *Producer) appendAsync(record model.UsageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := p.store.AppendStream(ctx, StreamKey, fieldsFor(record)); err != nil {
		p.logger.Warn("failed to append telemetry record",
			zap.String("key", maskKey(record.Key)),
			zap.String("model", record.Model),
			zap.Error(err))
	}
}
