// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/stall-allot/activity"
	"github.com/danielhkuo/stall-allot/models"
)

func TestResolve_RaffleHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.createRaffle(t, "stall-1", 72)

	h.join(t, p.ID, "ann")
	h.clock.Advance(time.Hour)
	h.join(t, p.ID, "ben")
	h.clock.Advance(time.Hour)
	h.join(t, p.ID, "cat")

	h.clock.Advance(71 * time.Hour) // 73h after activation
	o, err := h.svc.Resolve(ctx, p.ID, models.MethodManual, manager)
	require.NoError(t, err)

	assert.Contains(t, []string{"ann", "ben", "cat"}, o.WinnerID)
	assert.Equal(t, 3, o.EntryCount)
	assert.Equal(t, models.MethodManual, o.Method)
	assert.Equal(t, manager, o.ResolvedBy)
	assert.NotEmpty(t, o.DrawSeed)
	assert.Nil(t, o.WinningAmount)

	stall := h.stall(t, "stall-1")
	assert.Equal(t, models.AvailabilityAssigned, stall.Availability)
	assert.Equal(t, o.WinnerID, stall.AssignedTo)

	h.clock.Advance(time.Hour)
	again, err := h.svc.Resolve(ctx, p.ID, models.MethodAutoSweep, "")
	require.NoError(t, err)
	assert.Equal(t, o, again)

	replayed, err := h.svc.ReplayDraw(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, o.WinnerID, replayed)
	assert.Equal(t, 1, h.events.count(activity.TypeProcessResolved))
}

func TestResolve_AuctionPicksLeader(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.createAuction(t, "stall-1", 24, 100, 50)

	_, err := h.bid(p.ID, "A", 150)
	require.NoError(t, err)
	_, err = h.bid(p.ID, "C", 200)
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	o, err := h.svc.Resolve(ctx, p.ID, models.MethodAutoSweep, "")
	require.NoError(t, err)
	assert.Equal(t, "C", o.WinnerID)
	require.NotNil(t, o.WinningAmount)
	assert.True(t, o.WinningAmount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, models.SweepActor, o.ResolvedBy)
	assert.Empty(t, o.DrawSeed)

	_, err = h.svc.ReplayDraw(ctx, p.ID)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestResolve_NotYetExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	raffle := h.createRaffle(t, "raffle-stall", 24)
	auction := h.createAuction(t, "auction-stall", 24, 100, 10)

	// Dormant processes never expire.
	h.clock.Advance(100 * time.Hour)
	for _, id := range []string{raffle.ID, auction.ID} {
		_, err := h.svc.Resolve(ctx, id, models.MethodManual, manager)
		assert.ErrorIs(t, err, ErrNotYetExpired)
	}

	h.join(t, raffle.ID, "alice")
	_, err := h.bid(auction.ID, "alice", 100)
	require.NoError(t, err)

	h.clock.Advance(23 * time.Hour)
	for _, id := range []string{raffle.ID, auction.ID} {
		_, err := h.svc.Resolve(ctx, id, models.MethodManual, manager)
		assert.ErrorIs(t, err, ErrNotYetExpired)

		_, err = h.st.GetOutcome(ctx, id)
		assert.Error(t, err)
	}
}

func TestResolve_ManualRequiresManager(t *testing.T) {
	h := newHarness(t)
	p := h.createRaffle(t, "stall-1", 1)
	h.join(t, p.ID, "alice")
	h.clock.Advance(time.Hour)

	_, err := h.svc.Resolve(context.Background(), p.ID, models.MethodManual, "alice")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.Resolve(context.Background(), p.ID, "whenever", manager)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = h.svc.Resolve(context.Background(), "missing", models.MethodAutoSweep, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_ConcurrentCallsShareOneOutcome(t *testing.T) {
	h := newHarness(t)
	p := h.createAuction(t, "stall-1", 1, 10, 1)
	_, err := h.bid(p.ID, "alice", 10)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)

	const n = 8
	outcomes := make([]models.Outcome, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			method := models.MethodAutoSweep
			actor := ""
			if i%2 == 0 {
				method, actor = models.MethodManual, manager
			}
			outcomes[i], errs[i] = h.svc.Resolve(context.Background(), p.ID, method, actor)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, outcomes[0], outcomes[i])
	}
	assert.Equal(t, 1, h.events.count(activity.TypeProcessResolved))
}

func TestSelectWinner_NoEntries(t *testing.T) {
	h := newHarness(t)
	expires := h.clock.Now()

	for _, kind := range []models.ProcessKind{models.KindRaffle, models.KindAuction} {
		p := models.Process{ID: "p-" + string(kind), Kind: kind, Status: models.StatusActive, ExpiresAt: &expires}
		o, err := h.svc.selectWinner(context.Background(), p, expires)
		require.NoError(t, err)
		assert.True(t, o.NoWinner(), string(kind))
		assert.Nil(t, o.WinningAmount)
	}
}
