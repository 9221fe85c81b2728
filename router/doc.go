// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the stall allocation API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(svc, st, cfg, prometheus.DefaultGatherer)

# Endpoints

Health and metrics (no auth):

	GET /health
	GET /metrics

Registry (operator, requires X-Admin-Key):

	PUT /stalls/{id}                    - Register or reconfigure a stall
	PUT /branches/{id}/managers/{actor} - Grant branch management

Process lifecycle (requires X-Actor-ID and X-Actor-Key; the actor must
manage the branch):

	POST /stalls/{id}/processes  - Create a raffle or auction
	POST /processes/{id}/extend  - Extend the timer
	POST /processes/{id}/cancel  - Cancel
	POST /processes/{id}/resolve - Resolve an expired process

Entries and reads (any authenticated actor):

	POST /processes/{id}/entries  - Join or bid
	GET  /processes/{id}          - Details, entries and outcome
	GET  /processes/{id}/activity - Audit trail
	GET  /processes/{id}/draw     - Replay a raffle draw
	GET  /stalls/{id}/processes   - Processes of a stall

Every route except health and metrics is wrapped with WithLogging.
*/
package router
