// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielhkuo/stall-allot/activity"
	"github.com/danielhkuo/stall-allot/models"
	"github.com/danielhkuo/stall-allot/obs"
	"github.com/danielhkuo/stall-allot/store"
)

// Authorizer answers whether an actor manages a branch.
type Authorizer interface {
	CanManage(ctx context.Context, actorID, branchID string) (bool, error)
}

// Publisher receives lifecycle events after they are committed.
type Publisher interface {
	Publish(e activity.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(activity.Event) {}

// Service is the allocation engine: lifecycle controller, admitter and
// resolver over one store.
type Service struct {
	store  store.Store
	authz  Authorizer
	clock  Clock
	events Publisher

	metrics *obs.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger

	maxDurationHours int
	retryMaxElapsed  time.Duration
	newID            func() string
}

// New creates a Service.
func New(st store.Store, authz Authorizer, opts ...Option) *Service {
	s := &Service{
		store:            st,
		authz:            authz,
		clock:            SystemClock{},
		events:           nopPublisher{},
		tracer:           obs.Tracer(),
		logger:           slog.Default(),
		maxDurationHours: DefaultMaxDurationHours,
		retryMaxElapsed:  DefaultRetryMaxElapsed,
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxDurationHours reports the configured cap on total process duration.
func (s *Service) MaxDurationHours() int { return s.maxDurationHours }

// now returns the clock time at the store's millisecond precision.
func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

func (s *Service) startSpan(ctx context.Context, name, processID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("process_id", processID)))
}

func (s *Service) authorize(ctx context.Context, actorID, branchID string) error {
	if actorID == "" {
		return NewError(CodeForbidden, "actor is required")
	}
	ok, err := s.authz.CanManage(ctx, actorID, branchID)
	if err != nil {
		return fmt.Errorf("failed to authorize actor: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *Service) publish(typ string, p models.Process, actor string, at time.Time, data map[string]any) {
	s.events.Publish(activity.Event{
		Type:       typ,
		ProcessID:  p.ID,
		Actor:      actor,
		OccurredAt: at,
		Data:       data,
	})
}

func (s *Service) getProcess(ctx context.Context, id string) (models.Process, error) {
	p, err := s.store.GetProcess(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Process{}, NewError(CodeNotFound, "process not found")
	}
	return p, err
}

// IsExpired reports whether p is active and past due at now. Expiry is never
// stored; dormant processes cannot expire.
func IsExpired(p models.Process, now time.Time) bool {
	return p.Status == models.StatusActive && p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// acceptingAt reports whether p admits entries at now.
func acceptingAt(p models.Process, now time.Time) bool {
	switch p.Status {
	case models.StatusDormant:
		return true
	case models.StatusActive:
		return !IsExpired(p, now)
	default:
		return false
	}
}

// RequiredMinimum is the smallest acceptable next bid of an auction, or nil
// for a raffle.
func RequiredMinimum(p models.Process) *decimal.Decimal {
	if p.Kind != models.KindAuction || p.Auction == nil {
		return nil
	}
	if p.CurrentHighest == nil {
		m := p.Auction.StartingPrice
		return &m
	}
	m := p.CurrentHighest.Add(p.Auction.MinimumIncrement)
	return &m
}

// CreateProcessParams describes a new allocation process.
type CreateProcessParams struct {
	StallID          string
	Kind             models.ProcessKind
	DurationHours    int
	StartingPrice    *decimal.Decimal
	MinimumIncrement *decimal.Decimal
	Actor            string
}

func (s *Service) validateCreate(params CreateProcessParams) error {
	if params.StallID == "" {
		return invalidArgument("stall_id is required")
	}
	if !params.Kind.Valid() {
		return invalidArgument("kind must be raffle or auction")
	}
	if params.DurationHours <= 0 {
		return invalidArgument("duration_hours must be positive")
	}
	if params.DurationHours > s.maxDurationHours {
		return WithMetadata(CodeMaxDurationExceeded, "duration exceeds the maximum",
			map[string]string{"max_duration_hours": fmt.Sprint(s.maxDurationHours)})
	}

	switch params.Kind {
	case models.KindAuction:
		if params.StartingPrice == nil || params.MinimumIncrement == nil {
			return invalidArgument("auction requires starting_price and minimum_increment")
		}
		if params.StartingPrice.IsNegative() {
			return invalidArgument("starting_price must not be negative")
		}
		if !params.MinimumIncrement.IsPositive() {
			return invalidArgument("minimum_increment must be positive")
		}
	case models.KindRaffle:
		if params.StartingPrice != nil || params.MinimumIncrement != nil {
			return invalidArgument("raffle does not take auction parameters")
		}
	}
	return nil
}

// classifyStall explains why a stall cannot take a new process of kind k, or
// returns nil when it could.
func classifyStall(stall models.Stall, k models.ProcessKind) error {
	if !stall.AllocationMode.Matches(k) {
		return WithMetadata(CodeStallNotEligible, "stall allocation mode does not match process kind",
			map[string]string{"allocation_mode": string(stall.AllocationMode)})
	}
	switch stall.Availability {
	case models.AvailabilityAssigned:
		return NewError(CodeStallNotEligible, "stall is already assigned")
	case models.AvailabilityLocked:
		return ErrProcessAlreadyActive
	}
	return nil
}

// CreateProcess creates a dormant process and locks its stall.
func (s *Service) CreateProcess(ctx context.Context, params CreateProcessParams) (p models.Process, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "engine.CreateProcess", "")
	span.SetAttributes(attribute.String("stall_id", params.StallID), attribute.String("kind", string(params.Kind)))
	defer func() {
		obs.EndSpan(span, err)
		s.metrics.Lifecycle("create", resultLabel(err))
		s.metrics.ObserveSince("create", start)
	}()

	if err := s.validateCreate(params); err != nil {
		return models.Process{}, err
	}

	stall, err := s.store.GetStall(ctx, params.StallID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Process{}, NewError(CodeNotFound, "stall not found")
	}
	if err != nil {
		return models.Process{}, err
	}
	if err := s.authorize(ctx, params.Actor, stall.BranchID); err != nil {
		return models.Process{}, err
	}
	if err := classifyStall(stall, params.Kind); err != nil {
		return models.Process{}, err
	}

	now := s.now()
	p = models.Process{
		ID:                      s.newID(),
		StallID:                 stall.ID,
		BranchID:                stall.BranchID,
		Kind:                    params.Kind,
		Status:                  models.StatusDormant,
		ConfiguredDurationHours: params.DurationHours,
		CreatedBy:               params.Actor,
		CreatedAt:               now,
		Version:                 1,
	}
	if params.Kind == models.KindAuction {
		p.Auction = &models.AuctionParams{
			StartingPrice:    *params.StartingPrice,
			MinimumIncrement: *params.MinimumIncrement,
		}
	}

	_, err = withRetry(ctx, s, "create", func() (struct{}, error) {
		err := s.store.CreateProcess(ctx, p)
		if !errors.Is(err, store.ErrConflict) {
			return struct{}{}, err
		}
		current, getErr := s.store.GetStall(ctx, p.StallID)
		if getErr != nil {
			return struct{}{}, getErr
		}
		if cause := classifyStall(current, p.Kind); cause != nil {
			return struct{}{}, cause
		}
		return struct{}{}, err
	})
	if err != nil {
		return models.Process{}, err
	}

	span.SetAttributes(attribute.String("process_id", p.ID))
	s.logger.Info("allocation process created",
		"process_id", p.ID, "stall_id", p.StallID, "kind", p.Kind, "duration_hours", p.ConfiguredDurationHours)
	s.publish(activity.TypeProcessCreated, p, params.Actor, now, map[string]any{
		"stall_id":       p.StallID,
		"kind":           string(p.Kind),
		"duration_hours": p.ConfiguredDurationHours,
	})
	return p, nil
}

// GetDetails returns a process with its entries, derived expiry and outcome.
func (s *Service) GetDetails(ctx context.Context, processID string) (models.ProcessDetails, error) {
	p, err := s.getProcess(ctx, processID)
	if err != nil {
		return models.ProcessDetails{}, err
	}
	entries, err := s.store.ListEntries(ctx, processID)
	if err != nil {
		return models.ProcessDetails{}, err
	}

	details := models.ProcessDetails{
		Process: p,
		Expired: IsExpired(p, s.now()),
		Entries: entries,
	}
	if !p.Status.Terminal() {
		details.RequiredMinimum = RequiredMinimum(p)
	}

	o, err := s.store.GetOutcome(ctx, processID)
	switch {
	case err == nil:
		details.Outcome = &o
	case !errors.Is(err, store.ErrNotFound):
		return models.ProcessDetails{}, err
	}
	return details, nil
}

// ListProcesses lists processes newest first.
func (s *Service) ListProcesses(ctx context.Context, filter store.ProcessFilter) ([]models.Process, error) {
	if filter.Status != "" {
		switch filter.Status {
		case models.StatusDormant, models.StatusActive, models.StatusResolved, models.StatusCancelled:
		default:
			return nil, invalidArgument("unknown status filter")
		}
	}
	return s.store.ListProcesses(ctx, filter)
}

// ListActivity returns the audit trail of a process.
func (s *Service) ListActivity(ctx context.Context, processID string, limit int) ([]models.ActivityRecord, error) {
	if _, err := s.getProcess(ctx, processID); err != nil {
		return nil, err
	}
	return s.store.ListActivity(ctx, processID, limit)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := CodeOf(err); code != CodeUnknown {
		return string(code)
	}
	return "error"
}
