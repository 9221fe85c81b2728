// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/stall-allot/activity"
	"github.com/danielhkuo/stall-allot/auth"
	"github.com/danielhkuo/stall-allot/cliparse"
	"github.com/danielhkuo/stall-allot/engine"
	"github.com/danielhkuo/stall-allot/middleware"
	"github.com/danielhkuo/stall-allot/models"
	"github.com/danielhkuo/stall-allot/store"
	"github.com/danielhkuo/stall-allot/testutil"
)

// auditPublisher writes events to the audit log synchronously so tests can
// read the activity trail right after a request
type auditPublisher struct {
	log *activity.AuditLog
}

func (p auditPublisher) Publish(e activity.Event) {
	_ = p.log.Handle(context.Background(), e)
}

type testEnv struct {
	db       *store.SQL
	cfg      cliparse.Config
	clock    *testutil.Clock
	svc      *engine.Service
	process  *ProcessHandler
	registry *RegistryHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	clock := testutil.NewClock()

	svc := engine.New(db, auth.NewBranchAuthorizer(db),
		engine.WithClock(clock),
		engine.WithPublisher(auditPublisher{log: activity.NewAuditLog(db)}),
		engine.WithMaxDurationHours(cfg.MaxDurationHours),
		engine.WithRetryMaxElapsed(10*time.Second),
	)

	registry := NewRegistryHandler(db)
	registry.now = clock.Now

	return &testEnv{
		db:       db,
		cfg:      cfg,
		clock:    clock,
		svc:      svc,
		process:  NewProcessHandler(svc),
		registry: registry,
	}
}

// asActor runs h behind RequireActor with credentials for actorID. An empty
// actorID sends no credentials.
func (e *testEnv) asActor(h http.HandlerFunc, actorID string, req *http.Request) *httptest.ResponseRecorder {
	if actorID != "" {
		for k, v := range testutil.ActorHeaders(e.cfg, actorID) {
			req.Header.Set(k, v)
		}
	}
	w := httptest.NewRecorder()
	middleware.RequireActor(e.cfg.ActorKeySalt, h)(w, req)
	return w
}

// request builds a request with the {id} path value set
func request(method, path, id string, body interface{}) *http.Request {
	req := testutil.MakeRequest(method, path, body, nil)
	req.SetPathValue("id", id)
	return req
}

// createProcess creates a process on a freshly seeded stall through the handler
func (e *testEnv) createProcess(t *testing.T, stallID string, body map[string]interface{}) models.Process {
	t.Helper()
	mode := models.AllocationMode(body["kind"].(string))
	testutil.SeedStall(t, e.db, stallID, mode)

	w := e.asActor(e.process.CreateProcess, testutil.TestManager,
		request("POST", "/stalls/"+stallID+"/processes", stallID, body))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var p models.Process
	testutil.AssertJSON(t, w, &p)
	return p
}

func (e *testEnv) createRaffle(t *testing.T, stallID string, hours int) models.Process {
	t.Helper()
	return e.createProcess(t, stallID, map[string]interface{}{
		"kind":           "raffle",
		"duration_hours": hours,
	})
}

func (e *testEnv) createAuction(t *testing.T, stallID string, hours int, start, inc string) models.Process {
	t.Helper()
	return e.createProcess(t, stallID, map[string]interface{}{
		"kind":              "auction",
		"duration_hours":    hours,
		"starting_price":    start,
		"minimum_increment": inc,
	})
}

// submit posts an entry for actorID; amount is omitted when empty
func (e *testEnv) submit(processID, actorID, amount string) *httptest.ResponseRecorder {
	var body interface{}
	if amount != "" {
		body = map[string]string{"amount": amount}
	}
	return e.asActor(e.process.SubmitEntry, actorID,
		request("POST", "/processes/"+processID+"/entries", processID, body))
}

// assertCode checks the machine-readable code of an error response
func assertCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) models.ErrorResponse {
	t.Helper()
	testutil.AssertStatus(t, w, status)
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Code != code {
		t.Errorf("Expected code '%s', got '%s' (%s)", code, resp.Code, resp.Message)
	}
	return resp
}
