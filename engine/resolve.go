// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielhkuo/stall-allot/activity"
	"github.com/danielhkuo/stall-allot/models"
	"github.com/danielhkuo/stall-allot/obs"
	"github.com/danielhkuo/stall-allot/store"
)

// Resolve selects the winner of an expired process and commits the outcome
// exactly once. Calling it again, concurrently or later, returns the
// committed outcome. Manual resolution requires a manager of the branch;
// the sweep resolves with MethodAutoSweep and no actor check.
func (s *Service) Resolve(ctx context.Context, processID string, method models.ResolutionMethod, actor string) (o models.Outcome, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "engine.Resolve", processID)
	span.SetAttributes(attribute.String("method", string(method)))
	defer func() {
		obs.EndSpan(span, err)
		s.metrics.Resolution(string(method), resultLabel(err))
		s.metrics.ObserveSince("resolve", start)
	}()

	resolvedBy := models.SweepActor
	switch method {
	case models.MethodAutoSweep:
	case models.MethodManual:
		current, err := s.getProcess(ctx, processID)
		if err != nil {
			return models.Outcome{}, err
		}
		if err := s.authorize(ctx, actor, current.BranchID); err != nil {
			return models.Outcome{}, err
		}
		resolvedBy = actor
	default:
		return models.Outcome{}, invalidArgument("unknown resolution method")
	}

	created := false
	o, err = withRetry(ctx, s, "resolve", func() (models.Outcome, error) {
		p, err := s.getProcess(ctx, processID)
		if err != nil {
			return models.Outcome{}, err
		}

		existing, err := s.store.GetOutcome(ctx, processID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return models.Outcome{}, err
		}

		now := s.now()
		switch {
		case p.Status == models.StatusCancelled:
			return models.Outcome{}, NewError(CodeAlreadyTerminal, "process was cancelled")
		case p.Status == models.StatusResolved:
			// Outcome and status are committed together; retry the read.
			return models.Outcome{}, store.ErrConflict
		case !IsExpired(p, now):
			meta := map[string]string{}
			if p.ExpiresAt != nil {
				meta["expires_at"] = p.ExpiresAt.Format(time.RFC3339)
			}
			return models.Outcome{}, WithMetadata(CodeNotYetExpired, "process has not expired yet", meta)
		}

		outcome, err := s.selectWinner(ctx, p, now)
		if err != nil {
			return models.Outcome{}, err
		}
		outcome.Method = method
		outcome.ResolvedBy = resolvedBy

		committed, ok, err := s.store.CommitOutcome(ctx, store.CommitParams{
			Outcome:       outcome,
			StallID:       p.StallID,
			ExpectVersion: p.Version,
		})
		if err != nil {
			return models.Outcome{}, err
		}
		created = ok
		return committed, nil
	})
	if err != nil {
		return models.Outcome{}, err
	}

	if created {
		span.SetAttributes(attribute.String("winner_id", o.WinnerID))
		s.logger.Info("allocation process resolved",
			"process_id", o.ProcessID, "winner_id", o.WinnerID, "entry_count", o.EntryCount, "method", o.Method)
		data := map[string]any{
			"winner_id":   o.WinnerID,
			"entry_count": o.EntryCount,
			"method":      string(o.Method),
		}
		if o.WinningAmount != nil {
			data["winning_amount"] = o.WinningAmount.String()
		}
		s.events.Publish(activity.Event{
			Type:       activity.TypeProcessResolved,
			ProcessID:  o.ProcessID,
			Actor:      o.ResolvedBy,
			OccurredAt: o.ResolvedAt,
			Data:       data,
		})
	}
	return o, nil
}

// selectWinner runs the kind-specific algorithm over the current snapshot.
// The commit is guarded by p.Version, so the snapshot cannot go stale.
func (s *Service) selectWinner(ctx context.Context, p models.Process, now time.Time) (models.Outcome, error) {
	o := models.Outcome{
		ProcessID:  p.ID,
		EntryCount: p.EntryCount,
		ResolvedAt: now,
	}

	switch p.Kind {
	case models.KindRaffle:
		seed := DrawSeed(p.ID, now)
		o.DrawSeed = hex.EncodeToString(seed)
		if p.EntryCount == 0 {
			return o, nil
		}
		entries, err := s.store.ListEntries(ctx, p.ID)
		if err != nil {
			return models.Outcome{}, err
		}
		if len(entries) == 0 {
			return o, nil
		}
		idx, err := DrawIndex(seed, len(entries))
		if err != nil {
			return models.Outcome{}, err
		}
		o.WinnerID = entries[idx].ClaimantID
		o.EntryCount = len(entries)

	case models.KindAuction:
		if p.EntryCount == 0 || p.LeaderID == "" {
			return o, nil
		}
		o.WinnerID = p.LeaderID
		o.WinningAmount = p.CurrentHighest
	}
	return o, nil
}

// ReplayDraw recomputes the raffle pick of a resolved process from its
// stored seed and entries.
func (s *Service) ReplayDraw(ctx context.Context, processID string) (string, error) {
	p, err := s.getProcess(ctx, processID)
	if err != nil {
		return "", err
	}
	if p.Kind != models.KindRaffle {
		return "", invalidArgument("only raffles have a draw")
	}
	o, err := s.store.GetOutcome(ctx, processID)
	if errors.Is(err, store.ErrNotFound) {
		return "", NewError(CodeNotFound, "process has no outcome")
	}
	if err != nil {
		return "", err
	}
	entries, err := s.store.ListEntries(ctx, processID)
	if err != nil {
		return "", err
	}
	return ReplayDraw(o, entries)
}
