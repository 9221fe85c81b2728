// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/stall-allot/auth"
	"github.com/danielhkuo/stall-allot/cliparse"
	"github.com/danielhkuo/stall-allot/models"
	"github.com/danielhkuo/stall-allot/store"
)

// Epoch is the fixed start time of the test clock
var Epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// TestBranch is the branch every seeded stall belongs to
const TestBranch = "branch-1"

// TestManager manages TestBranch in databases seeded by SeedStall
const TestManager = "manager-1"

// SetupTestDB opens a fresh SQLite store with the full schema in a temp dir
func SetupTestDB(t *testing.T) *store.SQL {
	t.Helper()

	s, err := store.Open(context.Background(), store.Config{
		Dialect: store.DialectSQLite,
		URL:     filepath.Join(t.TempDir(), "stall-allot.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:             3318,
		DatabaseURL:      "file:test.db",
		DatabaseType:     "sqlite",
		ActorKeySalt:     "test-actor-salt",
		AdminKey:         "test-admin-key",
		SweepInterval:    time.Minute,
		SweepBatchSize:   100,
		MaxDurationHours: 168,
		RetryMaxElapsed:  2 * time.Second,
		EventBuffer:      64,
	}
}

// Clock is a controllable clock for tests
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at Epoch
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// SeedStall registers a stall in TestBranch with TestManager as its manager
func SeedStall(t *testing.T, s store.Store, stallID string, mode models.AllocationMode) models.Stall {
	t.Helper()

	ctx := context.Background()
	stall, err := s.UpsertStall(ctx, models.Stall{
		ID:             stallID,
		BranchID:       TestBranch,
		AllocationMode: mode,
		UpdatedAt:      Epoch,
	})
	if err != nil {
		t.Fatalf("Failed to create test stall: %v", err)
	}
	if err := s.AddBranchManager(ctx, TestBranch, TestManager, Epoch); err != nil {
		t.Fatalf("Failed to add test manager: %v", err)
	}

	return stall
}

// ActorHeaders returns authentication headers for an actor
func ActorHeaders(cfg cliparse.Config, actorID string) map[string]string {
	return map[string]string{
		"X-Actor-ID":  actorID,
		"X-Actor-Key": auth.GenerateActorKey(actorID, cfg.ActorKeySalt),
	}
}

// AdminHeaders returns the operator header for registry endpoints
func AdminHeaders(cfg cliparse.Config) map[string]string {
	return map[string]string{"X-Admin-Key": cfg.AdminKey}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
