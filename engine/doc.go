// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine implements timed competitive allocation of stalls.

# Lifecycle

	dormant ──first entry──▶ active ──expires_at passes──▶ (expired)
	   │                       │                              │
	   └──────cancel───────────┴──────cancel──────┐        resolve
	                                              ▼           ▼
	                                          cancelled    resolved

Expired is derived, never stored: a process is expired while its status is
active and the clock has reached expires_at. A dormant process has no
deadline and waits indefinitely for its first entry.

# Admission

Admit reads the process, checks it is accepting, rejects a claimant that
already entered, validates the kind-specific payload and then appends the
entry with a compare-and-swap on the process version. A lost swap re-reads
and re-validates; for auctions a bid that was valid before the lost race
and is now too low fails with BID_SUPERSEDED instead of BID_TOO_LOW.

Auction bids must reach RequiredMinimum: the starting price for the first
bid, then the current highest plus the minimum increment. Two accepted
bids can therefore never tie.

# Resolution

Resolve commits one Outcome per process. Raffles draw uniformly over the
entries ordered by seq, with a PCG generator seeded from
SHA-256(process id, resolved_at millis); the seed is stored so ReplayDraw
can reproduce the pick. Auctions award the leader. A process with no
entries resolves with no winner and releases the stall.

# Errors

Every rejection is an *Error with a Code; errors.Is matches by code:

	var de *engine.Error
	if errors.As(err, &de) && de.Code == engine.CodeBidTooLow {
		next := de.Metadata[engine.MetaRequiredMinimum]
	}

Store conflicts and transient driver errors are retried with exponential
backoff inside the Service until the configured budget runs out.
*/
package engine
