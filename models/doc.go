// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines domain, request, and response types for the API.

# Domain Types

  - Stall: allocatable resource with branch, allocation mode and availability
  - Process: one raffle or auction bound to a stall
  - Entry: an accepted raffle participant or auction bid
  - Outcome: the committed, immutable result of a process
  - ActivityRecord: one audit-log row

# Request Types

  - CreateProcessRequest: kind, duration_hours, starting_price, minimum_increment
  - SubmitEntryRequest: amount (auctions only)
  - ExtendTimerRequest: extra_hours
  - UpsertStallRequest: branch_id, allocation_mode

# Response Types

  - AdmissionView: leader, entry count and next required minimum
  - ProcessDetails: process, derived expiry, entries and outcome
  - ExtendTimerResponse, CancelProcessResponse
  - ListProcessesResponse, ActivityResponse, BranchManagerResponse
  - ErrorResponse: error, code, message, required_minimum, metadata

# Constants

Process status values:

	StatusDormant   = "dormant"
	StatusActive    = "active"
	StatusResolved  = "resolved"
	StatusCancelled = "cancelled"

Expired is never stored; it is derived from an active status and a past-due
expires_at.

Kinds and allocation modes:

	KindRaffle  = "raffle"
	KindAuction = "auction"
	ModeNone    = "none"

Amounts are shopspring/decimal values and serialize as JSON strings.
*/
package models
