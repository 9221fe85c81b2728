// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package sweep runs the periodic job that resolves expired allocation
// processes. It is the liveness backstop: a process nobody resolves by hand
// is resolved on the first tick after it expires. Dormant processes are
// never listed, so they are never resolved by the sweep.
package sweep
