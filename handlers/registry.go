// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/stall-allot/engine"
	"github.com/danielhkuo/stall-allot/middleware"
	"github.com/danielhkuo/stall-allot/models"
	"github.com/danielhkuo/stall-allot/store"
)

// RegistryHandler manages the stall registry and branch managers. These are
// operator endpoints guarded by the admin key.
type RegistryHandler struct {
	store store.Store
	now   func() time.Time
}

func NewRegistryHandler(st store.Store) *RegistryHandler {
	return &RegistryHandler{store: st, now: time.Now}
}

// UpsertStall handles PUT /stalls/{id}
func (h *RegistryHandler) UpsertStall(w http.ResponseWriter, r *http.Request) {
	stallID := r.PathValue("id")
	if stallID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "stall ID required")
		return
	}

	var req models.UpsertStallRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.BranchID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "branch_id is required")
		return
	}
	if req.AllocationMode == "" {
		req.AllocationMode = models.ModeNone
	}
	if !req.AllocationMode.Valid() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "allocation_mode must be none, raffle or auction")
		return
	}

	stall, err := h.store.UpsertStall(r.Context(), models.Stall{
		ID:             stallID,
		BranchID:       req.BranchID,
		AllocationMode: req.AllocationMode,
		UpdatedAt:      h.now().UTC(),
	})
	if errors.Is(err, store.ErrConflict) {
		err = engine.Wrap(engine.CodeProcessAlreadyActive,
			"stall has an open allocation process; mode and branch cannot change until it ends", err)
	}
	if err != nil {
		writeError(w, r, "upsert_stall", err)
		return
	}

	slog.Info("stall registered", "stall_id", stall.ID, "branch_id", stall.BranchID, "mode", stall.AllocationMode)

	middleware.JSONResponse(w, http.StatusOK, stall)
}

// AddManager handles PUT /branches/{id}/managers/{actor}
func (h *RegistryHandler) AddManager(w http.ResponseWriter, r *http.Request) {
	branchID := r.PathValue("id")
	actorID := r.PathValue("actor")
	if branchID == "" || actorID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "branch ID and actor ID required")
		return
	}

	now := h.now().UTC().Truncate(time.Millisecond)
	if err := h.store.AddBranchManager(r.Context(), branchID, actorID, now); err != nil {
		writeError(w, r, "add_manager", err)
		return
	}

	slog.Info("branch manager added", "branch_id", branchID, "actor_id", actorID)

	middleware.JSONResponse(w, http.StatusOK, models.BranchManagerResponse{
		BranchID:  branchID,
		ActorID:   actorID,
		CreatedAt: now,
	})
}
