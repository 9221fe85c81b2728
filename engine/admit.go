// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/danielhkuo/stall-allot/activity"
	"github.com/danielhkuo/stall-allot/models"
	"github.com/danielhkuo/stall-allot/obs"
	"github.com/danielhkuo/stall-allot/store"
)

// AdmitParams is a join (raffle) or bid (auction) request.
type AdmitParams struct {
	ProcessID  string
	ClaimantID string
	Amount     *decimal.Decimal
}

type admission struct {
	process   models.Process
	entry     models.Entry
	activated bool
}

// Admit records a claim. The first admission of a dormant process
// activates it and fixes expires_at; later admissions need an active
// process that is not past due. Each attempt is a compare-and-swap on the
// process version; a lost race re-reads and re-validates.
func (s *Service) Admit(ctx context.Context, params AdmitParams) (view models.AdmissionView, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "engine.Admit", params.ProcessID)
	kind := "unknown"
	defer func() {
		obs.EndSpan(span, err)
		s.metrics.Admission(kind, resultLabel(err))
		s.metrics.ObserveSince("admit", start)
	}()

	if params.ClaimantID == "" {
		return models.AdmissionView{}, invalidArgument("claimant_id is required")
	}

	lostRace := false
	res, err := withRetry(ctx, s, "admit", func() (admission, error) {
		now := s.now()

		p, err := s.getProcess(ctx, params.ProcessID)
		if err != nil {
			return admission{}, err
		}
		kind = string(p.Kind)

		if !acceptingAt(p, now) {
			return admission{}, notAccepting(p)
		}

		dup, err := s.store.HasEntry(ctx, p.ID, params.ClaimantID)
		if err != nil {
			return admission{}, err
		}
		if dup {
			return admission{}, ErrDuplicateParticipant
		}

		if err := validateClaim(p, params.Amount, lostRace); err != nil {
			return admission{}, err
		}

		entry := models.Entry{
			ProcessID:   p.ID,
			Seq:         p.EntryCount + 1,
			Kind:        p.Kind,
			ClaimantID:  params.ClaimantID,
			Amount:      params.Amount,
			SubmittedAt: now,
		}
		change := store.AppendEntryParams{
			ProcessID:      p.ID,
			ExpectVersion:  p.Version,
			CurrentHighest: p.CurrentHighest,
			LeaderID:       p.LeaderID,
			Entry:          entry,
			Now:            now,
		}
		activated := p.Status == models.StatusDormant
		if activated {
			expires := now.Add(time.Duration(p.TotalHours()) * time.Hour)
			change.ActivatedAt = &now
			change.ExpiresAt = &expires
		}
		if p.Kind == models.KindAuction {
			change.CurrentHighest = params.Amount
			change.LeaderID = params.ClaimantID
		}

		updated, err := s.store.AppendEntry(ctx, change)
		switch {
		case errors.Is(err, store.ErrConflict):
			lostRace = true
			return admission{}, err
		case errors.Is(err, store.ErrDuplicate):
			return admission{}, ErrDuplicateParticipant
		case err != nil:
			return admission{}, err
		}
		return admission{process: updated, entry: entry, activated: activated}, nil
	})
	if err != nil {
		return models.AdmissionView{}, err
	}

	p := res.process
	span.SetAttributes(attribute.Int("seq", res.entry.Seq), attribute.Bool("activated", res.activated))

	if res.activated {
		s.logger.Info("allocation process activated", "process_id", p.ID, "expires_at", p.ExpiresAt)
		s.publish(activity.TypeProcessActivated, p, params.ClaimantID, res.entry.SubmittedAt, map[string]any{
			"expires_at": p.ExpiresAt,
		})
	}
	data := map[string]any{"seq": res.entry.Seq, "claimant_id": params.ClaimantID}
	if res.entry.Amount != nil {
		data["amount"] = res.entry.Amount.String()
	}
	s.logger.Info("entry admitted", "process_id", p.ID, "seq", res.entry.Seq, "claimant_id", params.ClaimantID)
	s.publish(activity.TypeEntryAdmitted, p, params.ClaimantID, res.entry.SubmittedAt, data)

	return models.AdmissionView{
		ProcessID:       p.ID,
		Kind:            p.Kind,
		Status:          p.Status,
		EntryCount:      p.EntryCount,
		Seq:             res.entry.Seq,
		CurrentHighest:  p.CurrentHighest,
		LeaderID:        p.LeaderID,
		RequiredMinimum: RequiredMinimum(p),
		ExpiresAt:       p.ExpiresAt,
		Activated:       res.activated,
	}, nil
}

// validateClaim checks the kind-specific payload. lostRace selects
// BidSuperseded over BidTooLow once a concurrent bid has raised the minimum
// under this caller.
func validateClaim(p models.Process, amount *decimal.Decimal, lostRace bool) error {
	switch p.Kind {
	case models.KindRaffle:
		if amount != nil {
			return invalidArgument("raffle entries do not take an amount")
		}
		return nil
	case models.KindAuction:
		if amount == nil || !amount.IsPositive() {
			return invalidArgument("auction bids require a positive amount")
		}
		required := RequiredMinimum(p)
		if amount.LessThan(*required) {
			code, msg := CodeBidTooLow, "bid is below the required minimum"
			if lostRace {
				code, msg = CodeBidSuperseded, "bid was outbid by a concurrent bid"
			}
			return WithMetadata(code, msg, map[string]string{MetaRequiredMinimum: required.String()})
		}
		return nil
	default:
		return invalidArgument("unknown process kind")
	}
}

func notAccepting(p models.Process) error {
	msg := "process is not accepting entries"
	switch {
	case p.Status == models.StatusActive:
		msg = "process has expired"
	case p.Status.Terminal():
		msg = "process is " + string(p.Status)
	}
	return NewError(CodeProcessNotAcceptingEntries, msg)
}
