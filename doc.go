// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the stall-allot API server.

stall-allot allocates market stalls through timed raffles and auctions. A
process is created dormant on a stall, starts its timer on the first entry,
and is resolved exactly once after it expires, either by a branch manager
or by the background sweep.

# Starting the Server

	ACTOR_KEY_SALT=... ADMIN_KEY=... DATABASE_URL=stall-allot.db go run .

Or with flags:

	go run . -p 3318 -d "postgres://..." -t postgres

An optional .env file in the working directory is loaded first.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - ACTOR_KEY_SALT (-actor-salt): secret for actor key HMAC
  - ADMIN_KEY (-admin-key): operator key for registry endpoints

Optional settings:

  - PORT (-p): server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - SWEEP_INTERVAL, SWEEP_BATCH_SIZE: background resolution cadence
  - MAX_DURATION_HOURS: cap on configured plus extended hours (default: 168)
  - RETRY_MAX_ELAPSED: compare-and-swap retry budget (default: 2s)
  - EVENT_BUFFER: activity dispatcher queue size
  - TRACING_ENABLED: export OpenTelemetry spans to stdout

# Architecture

  - engine: lifecycle controller, admitter and resolver
  - store: durable state with compare-and-swap writes (SQLite or PostgreSQL)
  - sweep: periodic resolution of expired processes
  - activity: audit log and notifications
  - obs: Prometheus metrics and tracing
  - handlers, router, middleware: HTTP surface
  - auth: actor keys and branch authorization
  - models, db, cliparse: types, schema, configuration

The HTTP server, sweep job and activity dispatcher run under one errgroup
and stop together on SIGINT or SIGTERM.
*/
package main
