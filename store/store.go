// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/stall-allot/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a conditional write matched no row
	// because the guarded state changed since it was read.
	ErrConflict = errors.New("store: conflict")

	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("store: duplicate")
)

// ProcessFilter narrows ListProcesses. Zero values mean "any".
type ProcessFilter struct {
	StallID string
	Status  models.ProcessStatus
	Limit   int
}

// AppendEntryParams describes one admission: the compare-and-swap on the
// process row plus the entry appended in the same transaction.
type AppendEntryParams struct {
	ProcessID     string
	ExpectVersion int64
	// ActivatedAt and ExpiresAt are only applied when the process is still
	// dormant; the stored values win otherwise.
	ActivatedAt    *time.Time
	ExpiresAt      *time.Time
	CurrentHighest *decimal.Decimal
	LeaderID       string
	Entry          models.Entry
	Now            time.Time
}

// ExtendParams moves expires_at forward by ExtraHours.
type ExtendParams struct {
	ProcessID     string
	ExpectVersion int64
	ExtraHours    int
	ExpiresAt     time.Time
	Now           time.Time
}

// CancelParams cancels a non-terminal process and unlocks its stall.
type CancelParams struct {
	ProcessID     string
	StallID       string
	ExpectVersion int64
	Now           time.Time
}

// CommitParams writes an outcome, resolves the process and updates the
// stall availability as one unit.
type CommitParams struct {
	Outcome       models.Outcome
	StallID       string
	ExpectVersion int64
}

// Store is the durable allocation store. Every mutating method is atomic;
// the conditional ones return ErrConflict when their guard fails.
type Store interface {
	UpsertStall(ctx context.Context, stall models.Stall) (models.Stall, error)
	GetStall(ctx context.Context, id string) (models.Stall, error)
	AddBranchManager(ctx context.Context, branchID, actorID string, now time.Time) error
	IsBranchManager(ctx context.Context, branchID, actorID string) (bool, error)

	CreateProcess(ctx context.Context, p models.Process) error
	GetProcess(ctx context.Context, id string) (models.Process, error)
	ListProcesses(ctx context.Context, filter ProcessFilter) ([]models.Process, error)
	ListDueProcesses(ctx context.Context, now time.Time, limit int) ([]models.Process, error)

	HasEntry(ctx context.Context, processID, claimantID string) (bool, error)
	ListEntries(ctx context.Context, processID string) ([]models.Entry, error)
	AppendEntry(ctx context.Context, params AppendEntryParams) (models.Process, error)

	ExtendProcess(ctx context.Context, params ExtendParams) (models.Process, error)
	CancelProcess(ctx context.Context, params CancelParams) (models.Process, error)

	GetOutcome(ctx context.Context, processID string) (models.Outcome, error)
	CommitOutcome(ctx context.Context, params CommitParams) (models.Outcome, bool, error)

	RecordActivity(ctx context.Context, record models.ActivityRecord) error
	ListActivity(ctx context.Context, processID string, limit int) ([]models.ActivityRecord, error)
}
