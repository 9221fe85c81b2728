// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/danielhkuo/stall-allot/obs"
)

const (
	DefaultMaxDurationHours = 168
	DefaultRetryMaxElapsed  = 2 * time.Second
)

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithPublisher sets the activity event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

func WithMetrics(m *obs.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMaxDurationHours caps configured plus extended hours of a process.
func WithMaxDurationHours(hours int) Option {
	return func(s *Service) {
		if hours > 0 {
			s.maxDurationHours = hours
		}
	}
}

// WithRetryMaxElapsed bounds how long a conditional write is retried after
// losing a race or hitting a busy store.
func WithRetryMaxElapsed(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryMaxElapsed = d
		}
	}
}

// WithIDGenerator overrides process id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}
