// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same statements run on SQLite and PostgreSQL.

# Tables

The schema includes:

  - stall: Stall registry (branch, allocation mode, availability)
  - branch_manager: Which actors manage which branch
  - allocation_process: One raffle or auction per row, with CAS version
  - allocation_entry: Append-only participants and bids
  - allocation_outcome: Immutable results, one per process
  - activity_log: Audit trail of state transitions

# Relationships

	stall 1──* allocation_process
	allocation_process 1──* allocation_entry
	allocation_process 1──? allocation_outcome
	allocation_process 1──* activity_log

# Indexes

Performance and integrity indexes on:

  - stall.branch_id
  - allocation_process.stall_id
  - allocation_process.(status, expires_at) for the sweep
  - allocation_process.stall_id unique while dormant or active
  - allocation_entry.(process_id, claimant_id) unique
  - activity_log.(process_id, occurred_at)
*/
package db
