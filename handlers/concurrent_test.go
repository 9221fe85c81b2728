// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/stall-allot/models"
	"github.com/danielhkuo/stall-allot/testutil"
)

// TestConcurrentFirstJoins verifies that simultaneous first entries activate
// the process exactly once and all see the same deadline
func TestConcurrentFirstJoins(t *testing.T) {
	env := newTestEnv(t)
	p := env.createRaffle(t, "stall-cj", 72)

	numClaimants := 12
	var activations atomic.Int32
	var wg sync.WaitGroup
	views := make([]models.AdmissionView, numClaimants)
	codes := make([]int, numClaimants)

	for i := 0; i < numClaimants; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			w := env.submit(p.ID, fmt.Sprintf("claimant-%d", idx), "")
			codes[idx] = w.Code
			if w.Code == http.StatusCreated {
				if err := json.Unmarshal(w.Body.Bytes(), &views[idx]); err != nil {
					t.Errorf("Claimant %d: failed to decode response: %v", idx, err)
				}
				if views[idx].Activated {
					activations.Add(1)
				}
			}
		}(i)
	}

	wg.Wait()

	for i, code := range codes {
		if code != http.StatusCreated {
			t.Errorf("Claimant %d: expected 201, got %d", i, code)
		}
	}
	if activations.Load() != 1 {
		t.Errorf("Expected exactly one activation, got %d", activations.Load())
	}

	want := testutil.Epoch.Add(72 * time.Hour)
	for i, v := range views {
		if v.ExpiresAt == nil || !v.ExpiresAt.Equal(want) {
			t.Errorf("Claimant %d: expected expires_at %v, got %v", i, want, v.ExpiresAt)
		}
	}

	details, err := env.svc.GetDetails(t.Context(), p.ID)
	if err != nil {
		t.Fatalf("Failed to get details: %v", err)
	}
	if len(details.Entries) != numClaimants {
		t.Errorf("Expected %d entries, got %d", numClaimants, len(details.Entries))
	}
	seen := make(map[int]bool)
	for _, e := range details.Entries {
		if seen[e.Seq] {
			t.Errorf("Duplicate seq %d", e.Seq)
		}
		seen[e.Seq] = true
	}
}

// TestConcurrentBids verifies that racing equal and higher bids never leave
// two accepted bids at the same amount
func TestConcurrentBids(t *testing.T) {
	env := newTestEnv(t)
	p := env.createAuction(t, "stall-cb", 24, "100", "50")
	testutil.AssertStatus(t, env.submit(p.ID, "A", "150"), http.StatusCreated)

	var wg sync.WaitGroup
	results := map[string]int{}
	var mu sync.Mutex
	for _, bid := range []struct{ who, amount string }{{"B", "150"}, {"C", "200"}} {
		wg.Add(1)
		go func(who, amount string) {
			defer wg.Done()
			w := env.submit(p.ID, who, amount)
			mu.Lock()
			results[who] = w.Code
			mu.Unlock()
		}(bid.who, bid.amount)
	}
	wg.Wait()

	if results["C"] != http.StatusCreated {
		t.Errorf("Expected C's bid accepted, got %d", results["C"])
	}
	if results["B"] != http.StatusUnprocessableEntity && results["B"] != http.StatusConflict {
		t.Errorf("Expected B rejected as too low or superseded, got %d", results["B"])
	}

	details, err := env.svc.GetDetails(t.Context(), p.ID)
	if err != nil {
		t.Fatalf("Failed to get details: %v", err)
	}
	if details.Process.LeaderID != "C" || details.Process.CurrentHighest.String() != "200" {
		t.Errorf("Expected C leading at 200, got %s at %v", details.Process.LeaderID, details.Process.CurrentHighest)
	}
	if len(details.Entries) != 2 {
		t.Errorf("Expected 2 accepted bids, got %d", len(details.Entries))
	}
}

// TestConcurrentResolve verifies that racing manual resolutions all return
// the single committed outcome
func TestConcurrentResolve(t *testing.T) {
	env := newTestEnv(t)
	p := env.createRaffle(t, "stall-cr", 1)
	for _, c := range []string{"a", "b", "c"} {
		testutil.AssertStatus(t, env.submit(p.ID, c, ""), http.StatusCreated)
	}
	env.clock.Advance(2 * time.Hour)

	numCallers := 8
	winners := make([]string, numCallers)
	var failures atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numCallers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			w := env.asActor(env.process.Resolve, testutil.TestManager,
				request("POST", "/processes/"+p.ID+"/resolve", p.ID, nil))
			if w.Code != http.StatusOK {
				failures.Add(1)
				return
			}
			var o models.Outcome
			if err := json.Unmarshal(w.Body.Bytes(), &o); err != nil {
				t.Errorf("Caller %d: failed to decode outcome: %v", idx, err)
				return
			}
			winners[idx] = o.WinnerID
		}(i)
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("Expected all resolves to succeed, %d failed", failures.Load())
	}
	for i := 1; i < numCallers; i++ {
		if winners[i] != winners[0] {
			t.Errorf("Caller %d saw winner %s, caller 0 saw %s", i, winners[i], winners[0])
		}
	}
}
