// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package store persists stalls, processes, entries, outcomes and activity in
// SQLite or PostgreSQL. Every state change is a conditional update on the
// process version inside one transaction; a failed guard returns
// ErrConflict.
package store
