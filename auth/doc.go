// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides actor authentication and branch authorization.

# Actor Keys

Actor keys use HMAC-SHA256 to create deterministic, verifiable keys:

	actorKey := auth.GenerateActorKey(actorID, salt)
	err := auth.ValidateActorKey(actorID, actorKey, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same actor ID and salt always produce the same key. This allows validation
without storing the key in the database. Requests carry the pair in the
X-Actor-ID and X-Actor-Key headers.

# Admin Key

Registry endpoints (stalls and branch managers) are operator-only and compare
X-Admin-Key against the configured key:

	err := auth.ValidateAdminKey(provided, cfg.AdminKey)

# Branch Authorization

BranchAuthorizer answers "does this actor manage this branch" from the
branch_manager table. Creating, extending, cancelling and manually resolving
a process all require it.
*/
package auth
