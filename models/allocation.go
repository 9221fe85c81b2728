// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessKind selects the winner-selection mechanism of a process.
type ProcessKind string

const (
	KindRaffle  ProcessKind = "raffle"
	KindAuction ProcessKind = "auction"
)

// Valid reports whether k is a known process kind.
func (k ProcessKind) Valid() bool {
	return k == KindRaffle || k == KindAuction
}

// ProcessStatus is the persisted lifecycle state. Expired is never stored;
// it is derived from an active status and a past-due expires_at.
type ProcessStatus string

const (
	StatusDormant   ProcessStatus = "dormant"
	StatusActive    ProcessStatus = "active"
	StatusResolved  ProcessStatus = "resolved"
	StatusCancelled ProcessStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s ProcessStatus) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// AllocationMode is the mechanism a stall is configured for.
type AllocationMode string

const (
	ModeNone    AllocationMode = "none"
	ModeRaffle  AllocationMode = "raffle"
	ModeAuction AllocationMode = "auction"
)

// Valid reports whether m is a known allocation mode.
func (m AllocationMode) Valid() bool {
	return m == ModeNone || m == ModeRaffle || m == ModeAuction
}

// Matches reports whether a process of kind k may run on a stall in mode m.
func (m AllocationMode) Matches(k ProcessKind) bool {
	return string(m) == string(k)
}

// Availability of a stall.
type Availability string

const (
	AvailabilityAvailable Availability = "available"
	AvailabilityLocked    Availability = "locked"
	AvailabilityAssigned  Availability = "assigned"
)

// ResolutionMethod records who triggered the resolver.
type ResolutionMethod string

const (
	MethodManual    ResolutionMethod = "manual"
	MethodAutoSweep ResolutionMethod = "auto_sweep"
)

// SweepActor is recorded as resolved_by for automatic resolutions.
const SweepActor = "sweep"

// Stall is the allocatable resource as known to the stall registry.
type Stall struct {
	ID             string         `json:"id"`
	BranchID       string         `json:"branch_id"`
	AllocationMode AllocationMode `json:"allocation_mode"`
	Availability   Availability   `json:"availability"`
	AssignedTo     string         `json:"assigned_to,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// AuctionParams are the kind-specific parameters of an auction.
type AuctionParams struct {
	StartingPrice    decimal.Decimal `json:"starting_price"`
	MinimumIncrement decimal.Decimal `json:"minimum_increment"`
}

// Process is one contest instance bound to one stall.
type Process struct {
	ID                      string           `json:"id"`
	StallID                 string           `json:"stall_id"`
	BranchID                string           `json:"branch_id"`
	Kind                    ProcessKind      `json:"kind"`
	Status                  ProcessStatus    `json:"status"`
	ConfiguredDurationHours int              `json:"configured_duration_hours"`
	ExtendedHours           int              `json:"extended_hours"`
	CreatedBy               string           `json:"created_by"`
	CreatedAt               time.Time        `json:"created_at"`
	ActivatedAt             *time.Time       `json:"activated_at,omitempty"`
	ExpiresAt               *time.Time       `json:"expires_at,omitempty"`
	ResolvedAt              *time.Time       `json:"resolved_at,omitempty"`
	CancelledAt             *time.Time       `json:"cancelled_at,omitempty"`
	EntryCount              int              `json:"entry_count"`
	Auction                 *AuctionParams   `json:"auction,omitempty"`
	CurrentHighest          *decimal.Decimal `json:"current_highest,omitempty"`
	LeaderID                string           `json:"leader_id,omitempty"`
	Version                 int64            `json:"version"`
}

// TotalHours is the configured duration plus all accepted extensions.
func (p Process) TotalHours() int {
	return p.ConfiguredDurationHours + p.ExtendedHours
}

// Entry is an accepted claim: a raffle participant or an auction bid.
type Entry struct {
	ProcessID   string           `json:"process_id"`
	Seq         int              `json:"seq"`
	Kind        ProcessKind      `json:"kind"`
	ClaimantID  string           `json:"claimant_id"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// Outcome is the committed, immutable result of a process.
type Outcome struct {
	ProcessID     string           `json:"process_id"`
	WinnerID      string           `json:"winner_id,omitempty"`
	WinningAmount *decimal.Decimal `json:"winning_amount,omitempty"`
	EntryCount    int              `json:"entry_count"`
	ResolvedAt    time.Time        `json:"resolved_at"`
	Method        ResolutionMethod `json:"method"`
	ResolvedBy    string           `json:"resolved_by"`
	DrawSeed      string           `json:"draw_seed,omitempty"`
}

// NoWinner reports whether the process closed without admissions.
func (o Outcome) NoWinner() bool {
	return o.WinnerID == ""
}

// ActivityRecord is one audit-log row describing a state transition.
type ActivityRecord struct {
	ID         string    `json:"id"`
	ProcessID  string    `json:"process_id"`
	Type       string    `json:"type"`
	Actor      string    `json:"actor,omitempty"`
	Payload    string    `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Request types

type CreateProcessRequest struct {
	Kind             ProcessKind      `json:"kind"`
	DurationHours    int              `json:"duration_hours"`
	StartingPrice    *decimal.Decimal `json:"starting_price,omitempty"`
	MinimumIncrement *decimal.Decimal `json:"minimum_increment,omitempty"`
}

type SubmitEntryRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

type ExtendTimerRequest struct {
	ExtraHours int `json:"extra_hours"`
}

type UpsertStallRequest struct {
	BranchID       string         `json:"branch_id"`
	AllocationMode AllocationMode `json:"allocation_mode"`
}

// Response types

// AdmissionView is the leader/count view returned after an admission.
type AdmissionView struct {
	ProcessID       string           `json:"process_id"`
	Kind            ProcessKind      `json:"kind"`
	Status          ProcessStatus    `json:"status"`
	EntryCount      int              `json:"entry_count"`
	Seq             int              `json:"seq"`
	CurrentHighest  *decimal.Decimal `json:"current_highest,omitempty"`
	LeaderID        string           `json:"leader_id,omitempty"`
	RequiredMinimum *decimal.Decimal `json:"required_minimum,omitempty"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty"`
	Activated       bool             `json:"activated"`
}

// ProcessDetails is the full view of a process.
type ProcessDetails struct {
	Process         Process          `json:"process"`
	Expired         bool             `json:"expired"`
	RequiredMinimum *decimal.Decimal `json:"required_minimum,omitempty"`
	Entries         []Entry          `json:"entries"`
	Outcome         *Outcome         `json:"outcome,omitempty"`
}

type ExtendTimerResponse struct {
	ProcessID string    `json:"process_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CancelProcessResponse struct {
	ProcessID string        `json:"process_id"`
	Status    ProcessStatus `json:"status"`
}
