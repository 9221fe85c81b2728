// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Registry response types

type BranchManagerResponse struct {
	BranchID  string    `json:"branch_id"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ListProcessesResponse struct {
	Processes []Process `json:"processes"`
}

type ActivityResponse struct {
	ProcessID string           `json:"process_id"`
	Records   []ActivityRecord `json:"records"`
}

// Error response

type ErrorResponse struct {
	Error           string            `json:"error"`
	Code            string            `json:"code,omitempty"`
	Message         string            `json:"message,omitempty"`
	RequiredMinimum string            `json:"required_minimum,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// DrawVerification compares a committed raffle winner with a replay of the
// draw from the stored seed.
type DrawVerification struct {
	ProcessID        string `json:"process_id"`
	WinnerID         string `json:"winner_id,omitempty"`
	ReplayedWinnerID string `json:"replayed_winner_id,omitempty"`
	DrawSeed         string `json:"draw_seed"`
	Matches          bool   `json:"matches"`
}
