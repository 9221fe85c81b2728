// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var (
	ErrInvalidActorKey = errors.New("invalid actor key")
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrMissingActor    = errors.New("missing actor credentials")
)

// GenerateActorKey creates an HMAC-based key for an actor.
// This is deterministic and verifiable
func GenerateActorKey(actorID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(actorID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateActorKey checks if the provided key belongs to the actor
func ValidateActorKey(actorID, actorKey, salt string) error {
	if actorID == "" || actorKey == "" {
		return ErrMissingActor
	}
	expected := GenerateActorKey(actorID, salt)
	if !hmac.Equal([]byte(actorKey), []byte(expected)) {
		return ErrInvalidActorKey
	}
	return nil
}

// ValidateAdminKey compares the operator key in constant time
func ValidateAdminKey(provided, expected string) error {
	if expected == "" || !hmac.Equal([]byte(provided), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// ManagerLookup reports branch membership of an actor.
type ManagerLookup interface {
	IsBranchManager(ctx context.Context, branchID, actorID string) (bool, error)
}

// BranchAuthorizer grants manager operations to actors registered as
// managers of the branch.
type BranchAuthorizer struct {
	lookup ManagerLookup
}

func NewBranchAuthorizer(lookup ManagerLookup) *BranchAuthorizer {
	return &BranchAuthorizer{lookup: lookup}
}

// CanManage reports whether actorID manages branchID
func (a *BranchAuthorizer) CanManage(ctx context.Context, actorID, branchID string) (bool, error) {
	if actorID == "" || branchID == "" {
		return false, nil
	}
	return a.lookup.IsBranchManager(ctx, branchID, actorID)
}
