// Package telemetry implements the usage-record producer and consumer: a
// fire-and-forget stream append on the data plane, drained by a durable
// consumer-group reader on the control plane, with a pending-entry
// AUTOCLAIM step to recover entries an interrupted reader left unacked.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/BaSui01/hyperinfer/internal/model"
)

// StreamKey is the telemetry stream name.
const StreamKey = "hyperinfer:telemetry"

// ConsumerGroup is the fixed consumer-group name.
const ConsumerGroup = "telemetry-consumer"

// fieldsFor encodes a UsageRecord as the stream's flat string-keyed field
// map.
func fieldsFor(r model.UsageRecord) map[string]interface{} {
	return map[string]interface{}{
		"key":              r.Key,
		"model":            r.Model,
		"input_tokens":     strconv.FormatUint(uint64(r.InputTokens), 10),
		"output_tokens":    strconv.FormatUint(uint64(r.OutputTokens), 10),
		"response_time_ms": strconv.FormatUint(r.ResponseTimeMs, 10),
		"timestamp":        strconv.FormatUint(r.TimestampMs, 10),
	}
}

// parseEntry validates and decodes a stream entry's fields into a
// UsageRecord. key/model must be present, non-empty and non-whitespace;
// numeric fields must parse within their declared range.
func parseEntry(fields map[string]interface{}) (*model.UsageRecord, error) {
	key, err := stringField(fields, "key")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("telemetry entry: key is empty or whitespace")
	}

	modelName, err := stringField(fields, "model")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, fmt.Errorf("telemetry entry: model is empty or whitespace")
	}

	inputTokens, err := uint32Field(fields, "input_tokens")
	if err != nil {
		return nil, err
	}
	outputTokens, err := uint32Field(fields, "output_tokens")
	if err != nil {
		return nil, err
	}
	responseTimeMs, err := uint64Field(fields, "response_time_ms")
	if err != nil {
		return nil, err
	}
	timestampMs, err := uint64Field(fields, "timestamp")
	if err != nil {
		return nil, err
	}

	return &model.UsageRecord{
		Key:            key,
		Model:          modelName,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		ResponseTimeMs: responseTimeMs,
		TimestampMs:    timestampMs,
	}, nil
}

func stringField(fields map[string]interface{}, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("telemetry entry: missing field %q", name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("telemetry entry: field %q is not a string", name)
	}
	return s, nil
}

func uint32Field(fields map[string]interface{}, name string) (uint32, error) {
	s, err := stringField(fields, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("telemetry entry: field %q is not a valid uint32: %w", name, err)
	}
	return uint32(v), nil
}

func uint64Field(fields map[string]interface{}, name string) (uint64, error) {
	s, err := stringField(fields, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telemetry entry: field %q is not a valid uint64: %w", name, err)
	}
	return v, nil
}

// maskKey truncates key to its SHA-256 hash's last 8 hex characters for
// logging: the caller's key is never printed verbatim.
func maskKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	hexSum := hex.EncodeToString(sum[:])
	return "…" + hexSum[len(hexSum)-8:]
}
