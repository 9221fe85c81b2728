// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
//
// The DDL is shared by SQLite and PostgreSQL: timestamps are stored as
// unix milliseconds and amounts as canonical decimal text.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema (statement %d): %w", i+1, err)
		}
	}
	return nil
}

// Tables lists every table in dependency order, children first.
var Tables = []string{
	"activity_log",
	"allocation_outcome",
	"allocation_entry",
	"allocation_process",
	"branch_manager",
	"stall",
}

var schema = []string{
	// Stall registry
	`CREATE TABLE IF NOT EXISTS stall (
    id TEXT PRIMARY KEY,
    branch_id TEXT NOT NULL,
    allocation_mode TEXT NOT NULL DEFAULT 'none' CHECK (allocation_mode IN ('none', 'raffle', 'auction')),
    availability TEXT NOT NULL DEFAULT 'available' CHECK (availability IN ('available', 'locked', 'assigned')),
    assigned_to TEXT NOT NULL DEFAULT '',
    updated_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_stall_branch_id ON stall(branch_id)`,

	// Branch managers
	`CREATE TABLE IF NOT EXISTS branch_manager (
    branch_id TEXT NOT NULL,
    actor_id TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    PRIMARY KEY (branch_id, actor_id)
)`,

	// Allocation processes
	`CREATE TABLE IF NOT EXISTS allocation_process (
    id TEXT PRIMARY KEY,
    stall_id TEXT NOT NULL REFERENCES stall(id),
    branch_id TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('raffle', 'auction')),
    status TEXT NOT NULL DEFAULT 'dormant' CHECK (status IN ('dormant', 'active', 'resolved', 'cancelled')),
    configured_duration_hours INTEGER NOT NULL CHECK (configured_duration_hours > 0),
    extended_hours INTEGER NOT NULL DEFAULT 0,
    created_by TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    activated_at BIGINT,
    expires_at BIGINT,
    resolved_at BIGINT,
    cancelled_at BIGINT,
    entry_count INTEGER NOT NULL DEFAULT 0,
    starting_price TEXT,
    minimum_increment TEXT,
    current_highest TEXT,
    leader_id TEXT NOT NULL DEFAULT '',
    version BIGINT NOT NULL DEFAULT 1,
    updated_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_allocation_process_stall_id ON allocation_process(stall_id)`,
	`CREATE INDEX IF NOT EXISTS idx_allocation_process_due ON allocation_process(status, expires_at)`,
	// At most one non-terminal process per stall.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_allocation_process_open_stall
    ON allocation_process(stall_id) WHERE status IN ('dormant', 'active')`,

	// Entries (raffle participants / auction bids), append-only
	`CREATE TABLE IF NOT EXISTS allocation_entry (
    process_id TEXT NOT NULL REFERENCES allocation_process(id),
    seq INTEGER NOT NULL,
    claimant_id TEXT NOT NULL,
    amount TEXT,
    submitted_at BIGINT NOT NULL,
    PRIMARY KEY (process_id, seq),
    UNIQUE (process_id, claimant_id)
)`,

	// Outcomes, written once per process
	`CREATE TABLE IF NOT EXISTS allocation_outcome (
    process_id TEXT PRIMARY KEY REFERENCES allocation_process(id),
    winner_id TEXT NOT NULL DEFAULT '',
    winning_amount TEXT,
    entry_count INTEGER NOT NULL,
    method TEXT NOT NULL CHECK (method IN ('manual', 'auto_sweep')),
    resolved_by TEXT NOT NULL,
    draw_seed TEXT NOT NULL DEFAULT '',
    resolved_at BIGINT NOT NULL
)`,

	// Activity log
	`CREATE TABLE IF NOT EXISTS activity_log (
    id TEXT PRIMARY KEY,
    process_id TEXT NOT NULL,
    type TEXT NOT NULL,
    actor TEXT NOT NULL DEFAULT '',
    payload TEXT NOT NULL DEFAULT '',
    occurred_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_log_process_id ON activity_log(process_id, occurred_at)`,
}
