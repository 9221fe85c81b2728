// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/danielhkuo/stall-allot/models"
)

// DrawSeed derives the raffle seed from the process id and the resolution
// time, so the draw is reproducible from stored data alone.
func DrawSeed(processID string, resolvedAt time.Time) []byte {
	h := sha256.New()
	h.Write([]byte(processID))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(resolvedAt.UnixMilli()))
	h.Write(ts[:])
	return h.Sum(nil)
}

// DrawIndex picks a uniform index in [0, n) from seed.
func DrawIndex(seed []byte, n int) (int, error) {
	if len(seed) != sha256.Size {
		return 0, fmt.Errorf("draw seed must be %d bytes, got %d", sha256.Size, len(seed))
	}
	if n <= 0 {
		return 0, fmt.Errorf("draw needs at least one entry")
	}
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(seed[0:8]), binary.BigEndian.Uint64(seed[8:16])))
	return rng.IntN(n), nil
}

// ReplayDraw recomputes the raffle winner of o from the process entries in
// admission order. It returns "" for a no-winner outcome.
func ReplayDraw(o models.Outcome, entries []models.Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	seed, err := hex.DecodeString(o.DrawSeed)
	if err != nil {
		return "", fmt.Errorf("invalid draw seed: %w", err)
	}
	idx, err := DrawIndex(seed, len(entries))
	if err != nil {
		return "", err
	}
	return entries[idx].ClaimantID, nil
}
