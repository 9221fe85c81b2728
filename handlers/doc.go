// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the stall allocation API.

# Handler Types

  - ProcessHandler: allocation process lifecycle, entries and resolution,
    backed by *engine.Service
  - RegistryHandler: stall registry and branch managers, backed by the store

	processHandler := handlers.NewProcessHandler(svc)
	registryHandler := handlers.NewRegistryHandler(st)

# Process Lifecycle

A process starts dormant, activates on its first entry, and ends resolved
or cancelled:

	POST /stalls/{id}/processes   → CreateProcess (locks the stall)
	POST /processes/{id}/entries  → SubmitEntry (join a raffle or bid)
	POST /processes/{id}/extend   → ExtendTimer
	POST /processes/{id}/cancel   → CancelProcess (unlocks the stall)
	POST /processes/{id}/resolve  → Resolve (idempotent)

Reads:

	GET /processes/{id}           → GetProcess
	GET /processes/{id}/activity  → GetActivity
	GET /processes/{id}/draw      → VerifyDraw
	GET /stalls/{id}/processes    → ListStallProcesses

All of these require X-Actor-ID and X-Actor-Key. Create, extend, cancel and
resolve additionally require the actor to manage the stall's branch.

# Registry

	PUT /stalls/{id}                      → UpsertStall
	PUT /branches/{id}/managers/{actor}   → AddManager

Registry operations require the X-Admin-Key header.

# Errors

Engine errors are rendered with their code:

	404 NOT_FOUND
	403 FORBIDDEN
	400 INVALID_ARGUMENT
	422 BID_TOO_LOW, MAX_DURATION_EXCEEDED
	409 every other precondition or contention code, and CONFLICT when
	    retries ran out

Bid errors carry required_minimum at the top level of the body.
*/
package handlers
