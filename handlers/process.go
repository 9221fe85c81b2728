// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/danielhkuo/stall-allot/engine"
	"github.com/danielhkuo/stall-allot/middleware"
	"github.com/danielhkuo/stall-allot/models"
	"github.com/danielhkuo/stall-allot/store"
)

type ProcessHandler struct {
	svc *engine.Service
}

func NewProcessHandler(svc *engine.Service) *ProcessHandler {
	return &ProcessHandler{svc: svc}
}

// CreateProcess handles POST /stalls/{id}/processes
func (h *ProcessHandler) CreateProcess(w http.ResponseWriter, r *http.Request) {
	stallID := r.PathValue("id")
	if stallID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "stall ID required")
		return
	}

	var req models.CreateProcessRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	p, err := h.svc.CreateProcess(r.Context(), engine.CreateProcessParams{
		StallID:          stallID,
		Kind:             req.Kind,
		DurationHours:    req.DurationHours,
		StartingPrice:    req.StartingPrice,
		MinimumIncrement: req.MinimumIncrement,
		Actor:            middleware.Actor(r.Context()),
	})
	if err != nil {
		writeError(w, r, "create", err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, p)
}

// ListStallProcesses handles GET /stalls/{id}/processes?status=&limit=
func (h *ProcessHandler) ListStallProcesses(w http.ResponseWriter, r *http.Request) {
	stallID := r.PathValue("id")
	if stallID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "stall ID required")
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	processes, err := h.svc.ListProcesses(r.Context(), store.ProcessFilter{
		StallID: stallID,
		Status:  models.ProcessStatus(r.URL.Query().Get("status")),
		Limit:   limit,
	})
	if err != nil {
		writeError(w, r, "list", err)
		return
	}
	if processes == nil {
		processes = []models.Process{}
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListProcessesResponse{Processes: processes})
}

// SubmitEntry handles POST /processes/{id}/entries. The caller is the
// claimant; the body carries an amount for auctions and may be empty for
// raffles.
func (h *ProcessHandler) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	if processID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "process ID required")
		return
	}

	var req models.SubmitEntryRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	view, err := h.svc.Admit(r.Context(), engine.AdmitParams{
		ProcessID:  processID,
		ClaimantID: middleware.Actor(r.Context()),
		Amount:     req.Amount,
	})
	if err != nil {
		writeError(w, r, "admit", err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, view)
}

// ExtendTimer handles POST /processes/{id}/extend
func (h *ProcessHandler) ExtendTimer(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	if processID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "process ID required")
		return
	}

	var req models.ExtendTimerRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	p, err := h.svc.ExtendTimer(r.Context(), processID, req.ExtraHours, middleware.Actor(r.Context()))
	if err != nil {
		writeError(w, r, "extend", err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ExtendTimerResponse{
		ProcessID: p.ID,
		ExpiresAt: *p.ExpiresAt,
	})
}

// CancelProcess handles POST /processes/{id}/cancel
func (h *ProcessHandler) CancelProcess(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	if processID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "process ID required")
		return
	}

	p, err := h.svc.CancelProcess(r.Context(), processID, middleware.Actor(r.Context()))
	if err != nil {
		writeError(w, r, "cancel", err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CancelProcessResponse{
		ProcessID: p.ID,
		Status:    p.Status,
	})
}

// Resolve handles POST /processes/{id}/resolve
func (h *ProcessHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	if processID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "process ID required")
		return
	}

	o, err := h.svc.Resolve(r.Context(), processID, models.MethodManual, middleware.Actor(r.Context()))
	if err != nil {
		writeError(w, r, "resolve", err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, o)
}

// GetProcess handles GET /processes/{id}
func (h *ProcessHandler) GetProcess(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	if processID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "process ID required")
		return
	}

	details, err := h.svc.GetDetails(r.Context(), processID)
	if err != nil {
		writeError(w, r, "details", err)
		return
	}
	if details.Entries == nil {
		details.Entries = []models.Entry{}
	}

	middleware.JSONResponse(w, http.StatusOK, details)
}

// GetActivity handles GET /processes/{id}/activity?limit=
func (h *ProcessHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	if processID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "process ID required")
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	records, err := h.svc.ListActivity(r.Context(), processID, limit)
	if err != nil {
		writeError(w, r, "activity", err)
		return
	}
	if records == nil {
		records = []models.ActivityRecord{}
	}

	middleware.JSONResponse(w, http.StatusOK, models.ActivityResponse{ProcessID: processID, Records: records})
}

// VerifyDraw handles GET /processes/{id}/draw. It replays a resolved raffle
// from its stored seed and reports whether the pick matches the outcome.
func (h *ProcessHandler) VerifyDraw(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	if processID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "process ID required")
		return
	}

	replayed, err := h.svc.ReplayDraw(r.Context(), processID)
	if err != nil {
		writeError(w, r, "draw", err)
		return
	}
	details, err := h.svc.GetDetails(r.Context(), processID)
	if err != nil {
		writeError(w, r, "draw", err)
		return
	}

	resp := models.DrawVerification{
		ProcessID:        processID,
		ReplayedWinnerID: replayed,
	}
	if details.Outcome != nil {
		resp.WinnerID = details.Outcome.WinnerID
		resp.DrawSeed = details.Outcome.DrawSeed
		resp.Matches = details.Outcome.WinnerID == replayed
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// parseLimit reads an optional positive ?limit= query parameter
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}
