// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Environment variables are read first (github.com/caarlos0/env struct tags),
then CLI flags override them. main loads an optional .env file before
calling ParseFlags.

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: SQLite path/URI or PostgreSQL connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - ActorKeySalt: Secret for actor key HMAC (required)
  - AdminKey: Operator key for registry endpoints (required)
  - SweepInterval: How often expired processes are resolved (default: 1m)
  - SweepBatchSize: Processes resolved per sweep pass (default: 100)
  - MaxDurationHours: Cap on configured plus extended hours (default: 168)
  - RetryMaxElapsed: Retry budget for conditional writes (default: 2s)
  - EventBuffer: Activity dispatch buffer (default: 256)
  - TracingEnabled: Write OpenTelemetry spans to stdout (default: false)

# CLI Flags

	-p            Server port
	-d            Database URL
	-t            Database type
	-actor-salt   Actor key salt
	-admin-key    Operator key

# Environment Variables

	PORT               → -p
	DATABASE_URL       → -d
	DATABASE_TYPE      → -t
	ACTOR_KEY_SALT     → -actor-salt
	ADMIN_KEY          → -admin-key
	SWEEP_INTERVAL, SWEEP_BATCH_SIZE, MAX_DURATION_HOURS,
	RETRY_MAX_ELAPSED, EVENT_BUFFER, TRACING_ENABLED (env only)

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if required values are missing or a tuning
value is not positive.
*/
package cliparse
