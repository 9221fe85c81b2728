// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package obs wires Prometheus metrics and OpenTelemetry tracing.
//
// Metrics are registered on an injected prometheus.Registerer so tests can
// use a private registry. Tracing is opt-in; with it disabled the global
// no-op provider stays in place and engine spans cost nothing.
package obs
