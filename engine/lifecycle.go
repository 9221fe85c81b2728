// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/stall-allot/activity"
	"github.com/danielhkuo/stall-allot/models"
	"github.com/danielhkuo/stall-allot/obs"
	"github.com/danielhkuo/stall-allot/store"
)

// ExtendTimer pushes expires_at of an active, not yet expired process out by
// extraHours, as long as configured plus extended hours stay within the
// maximum.
func (s *Service) ExtendTimer(ctx context.Context, processID string, extraHours int, actor string) (p models.Process, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "engine.ExtendTimer", processID)
	defer func() {
		obs.EndSpan(span, err)
		s.metrics.Lifecycle("extend", resultLabel(err))
		s.metrics.ObserveSince("extend", start)
	}()

	if extraHours <= 0 {
		return models.Process{}, invalidArgument("extra_hours must be positive")
	}

	current, err := s.getProcess(ctx, processID)
	if err != nil {
		return models.Process{}, err
	}
	if err := s.authorize(ctx, actor, current.BranchID); err != nil {
		return models.Process{}, err
	}

	p, err = withRetry(ctx, s, "extend", func() (models.Process, error) {
		now := s.now()
		p, err := s.getProcess(ctx, processID)
		if err != nil {
			return models.Process{}, err
		}
		if p.Status != models.StatusActive || IsExpired(p, now) {
			return models.Process{}, notAccepting(p)
		}
		if total := p.TotalHours() + extraHours; total > s.maxDurationHours {
			return models.Process{}, WithMetadata(CodeMaxDurationExceeded, "total duration would exceed the maximum",
				map[string]string{
					"max_duration_hours": fmt.Sprint(s.maxDurationHours),
					"remaining_hours":    fmt.Sprint(s.maxDurationHours - p.TotalHours()),
				})
		}

		return s.store.ExtendProcess(ctx, store.ExtendParams{
			ProcessID:     p.ID,
			ExpectVersion: p.Version,
			ExtraHours:    extraHours,
			ExpiresAt:     p.ExpiresAt.Add(time.Duration(extraHours) * time.Hour),
			Now:           now,
		})
	})
	if err != nil {
		return models.Process{}, err
	}

	s.logger.Info("allocation process extended",
		"process_id", p.ID, "extra_hours", extraHours, "expires_at", p.ExpiresAt)
	s.publish(activity.TypeProcessExtended, p, actor, s.now(), map[string]any{
		"extra_hours": extraHours,
		"expires_at":  p.ExpiresAt,
	})
	return p, nil
}

// CancelProcess moves a dormant or active process to cancelled and releases
// its stall. No outcome is written.
func (s *Service) CancelProcess(ctx context.Context, processID, actor string) (p models.Process, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "engine.CancelProcess", processID)
	defer func() {
		obs.EndSpan(span, err)
		s.metrics.Lifecycle("cancel", resultLabel(err))
		s.metrics.ObserveSince("cancel", start)
	}()

	current, err := s.getProcess(ctx, processID)
	if err != nil {
		return models.Process{}, err
	}
	if err := s.authorize(ctx, actor, current.BranchID); err != nil {
		return models.Process{}, err
	}

	p, err = withRetry(ctx, s, "cancel", func() (models.Process, error) {
		p, err := s.getProcess(ctx, processID)
		if err != nil {
			return models.Process{}, err
		}
		if p.Status.Terminal() {
			return models.Process{}, NewError(CodeAlreadyTerminal, "process is already "+string(p.Status))
		}
		p, err = s.store.CancelProcess(ctx, store.CancelParams{
			ProcessID:     p.ID,
			StallID:       p.StallID,
			ExpectVersion: p.Version,
			Now:           s.now(),
		})
		if errors.Is(err, store.ErrNotFound) {
			return models.Process{}, NewError(CodeNotFound, "process not found")
		}
		return p, err
	})
	if err != nil {
		return models.Process{}, err
	}

	s.logger.Info("allocation process cancelled", "process_id", p.ID, "stall_id", p.StallID)
	s.publish(activity.TypeProcessCancelled, p, actor, *p.CancelledAt, nil)
	return p, nil
}
