// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/danielhkuo/stall-allot/models"
)

// Recorder persists activity records.
type Recorder interface {
	RecordActivity(ctx context.Context, record models.ActivityRecord) error
}

// AuditLog writes every event to the activity log.
type AuditLog struct {
	recorder Recorder
}

func NewAuditLog(recorder Recorder) *AuditLog {
	return &AuditLog{recorder: recorder}
}

func (a *AuditLog) Handle(ctx context.Context, e Event) error {
	// v7 ids sort by creation time, which keeps same-millisecond rows in order.
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate activity id: %w", err)
	}

	payload := ""
	if len(e.Data) > 0 {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("failed to encode activity payload: %w", err)
		}
		payload = string(b)
	}

	return a.recorder.RecordActivity(ctx, models.ActivityRecord{
		ID:         id.String(),
		ProcessID:  e.ProcessID,
		Type:       e.Type,
		Actor:      e.Actor,
		Payload:    payload,
		OccurredAt: e.OccurredAt,
	})
}

// LogNotifier stands in for the notification collaborator: outcomes are
// logged at Info, everything else at Debug.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Handle(ctx context.Context, e Event) error {
	attrs := []any{"type", e.Type, "process_id", e.ProcessID}
	if e.Actor != "" {
		attrs = append(attrs, "actor", e.Actor)
	}
	for k, v := range e.Data {
		attrs = append(attrs, k, v)
	}

	level := slog.LevelDebug
	msg := "allocation activity"
	if e.Type == TypeProcessResolved {
		level = slog.LevelInfo
		msg = "allocation outcome"
	}
	n.logger.Log(ctx, level, msg, attrs...)
	return nil
}
