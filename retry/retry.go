//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package retry provides the retry policy shared by every model client.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Condition determines whether an error is retryable.
type Condition interface {
	Match(err error) bool
}

// ConditionFunc is an adapter to allow the use of ordinary functions as Condition.
type ConditionFunc func(error) bool

// Match calls f(err).
func (f ConditionFunc) Match(err error) bool { return f(err) }

// BackoffFunc returns the delay to wait after the given failed attempt.
// attempt starts at 1.
type BackoffFunc func(attempt int) time.Duration

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

// Error implements error.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry limit exceeded after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the last retryable error.
func (e *ExhaustedError) Unwrap() error { return e.Last }

// Policy is a retry configuration. Attempts are counted inclusive of the
// first try, so MaxAttempts=3 means 1 initial try and up to 2 retries.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	RetryOn     []Condition
	// Sleep defaults to a context-aware timer.
	Sleep SleepFunc
}

// Default returns the policy used for model invocations:
// 3 attempts with a 1.5^attempt second backoff.
func Default(conds ...Condition) Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     Exponential(time.Second, 1.5),
		RetryOn:     conds,
	}
}

// Exponential returns base * factor^attempt.
func Exponential(base time.Duration, factor float64) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return time.Duration(float64(base) * math.Pow(factor, float64(attempt)))
	}
}

// ShouldRetry reports whether err matches any of the policy's conditions.
func (p Policy) ShouldRetry(err error) bool {
	for _, cond := range p.RetryOn {
		if cond != nil && cond.Match(err) {
			return true
		}
	}
	return false
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts are used up. Non-retryable errors are returned as is.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if !p.ShouldRetry(err) {
			return err
		}
		last = err
		if attempt == attempts {
			break
		}
		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return &ExhaustedError{Attempts: attempts, Last: last}
}

// Sleep waits for d, returning ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OnErrors matches when errors.Is(err, target) for any target.
func OnErrors(targets ...error) Condition {
	return ConditionFunc(func(err error) bool {
		for _, t := range targets {
			if t != nil && errors.Is(err, t) {
				return true
			}
		}
		return false
	})
}

// OnPredicate defers matching to match.
func OnPredicate(match func(error) bool) Condition {
	return ConditionFunc(match)
}
