// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/stall-allot/activity"
	"github.com/danielhkuo/stall-allot/auth"
	"github.com/danielhkuo/stall-allot/models"
	"github.com/danielhkuo/stall-allot/obs"
	"github.com/danielhkuo/stall-allot/store"
	"github.com/danielhkuo/stall-allot/testutil"
)

const manager = testutil.TestManager

type recorder struct {
	mu     sync.Mutex
	events []activity.Event
}

func (r *recorder) Publish(e activity.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type harness struct {
	svc     *Service
	st      *store.SQL
	clock   *testutil.Clock
	events  *recorder
	metrics *obs.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := testutil.SetupTestDB(t)
	h := &harness{
		st:      st,
		clock:   testutil.NewClock(),
		events:  &recorder{},
		metrics: obs.NewMetrics(prometheus.NewRegistry()),
	}
	h.svc = New(st, auth.NewBranchAuthorizer(st),
		WithClock(h.clock),
		WithPublisher(h.events),
		WithMetrics(h.metrics),
		WithRetryMaxElapsed(10*time.Second),
	)
	return h
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func (h *harness) createRaffle(t *testing.T, stallID string, hours int) models.Process {
	t.Helper()
	testutil.SeedStall(t, h.st, stallID, models.ModeRaffle)
	p, err := h.svc.CreateProcess(context.Background(), CreateProcessParams{
		StallID:       stallID,
		Kind:          models.KindRaffle,
		DurationHours: hours,
		Actor:         manager,
	})
	require.NoError(t, err)
	return p
}

func (h *harness) createAuction(t *testing.T, stallID string, hours int, start, inc int64) models.Process {
	t.Helper()
	testutil.SeedStall(t, h.st, stallID, models.ModeAuction)
	p, err := h.svc.CreateProcess(context.Background(), CreateProcessParams{
		StallID:          stallID,
		Kind:             models.KindAuction,
		DurationHours:    hours,
		StartingPrice:    dec(start),
		MinimumIncrement: dec(inc),
		Actor:            manager,
	})
	require.NoError(t, err)
	return p
}

func (h *harness) join(t *testing.T, processID, claimant string) models.AdmissionView {
	t.Helper()
	v, err := h.svc.Admit(context.Background(), AdmitParams{ProcessID: processID, ClaimantID: claimant})
	require.NoError(t, err)
	return v
}

func (h *harness) bid(processID, claimant string, amount int64) (models.AdmissionView, error) {
	return h.svc.Admit(context.Background(), AdmitParams{ProcessID: processID, ClaimantID: claimant, Amount: dec(amount)})
}

func (h *harness) stall(t *testing.T, id string) models.Stall {
	t.Helper()
	s, err := h.st.GetStall(context.Background(), id)
	require.NoError(t, err)
	return s
}

// interleavedStore runs rival once, right before the first AppendEntry it
// forwards, so the caller's version check is guaranteed to lose.
type interleavedStore struct {
	*store.SQL
	once  sync.Once
	rival func()
}

func (s *interleavedStore) AppendEntry(ctx context.Context, params store.AppendEntryParams) (models.Process, error) {
	s.once.Do(s.rival)
	return s.SQL.AppendEntry(ctx, params)
}

// interleaved returns a service sharing h's database whose first append is
// preceded by rival.
func (h *harness) interleaved(rival func()) *Service {
	st := &interleavedStore{SQL: h.st, rival: rival}
	return New(st, auth.NewBranchAuthorizer(st),
		WithClock(h.clock),
		WithPublisher(h.events),
		WithRetryMaxElapsed(10*time.Second),
	)
}
