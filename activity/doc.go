// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package activity fans engine lifecycle events out to the audit log and the
// notifier.
//
// Delivery is best effort. The engine publishes after its transaction has
// committed, so a dropped or failed event never affects allocation state.
package activity
