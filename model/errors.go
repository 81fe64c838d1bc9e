//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-gameasset-go/retry"
)

// Kind classifies model invocation failures.
type Kind string

// Error kinds.
const (
	KindRateLimited Kind = "rate_limited"
	KindUnexpected  Kind = "unexpected"
)

// ErrRateLimited matches errors returned after throttling exhausted every attempt.
var ErrRateLimited = errors.New("throttling: retry limit exceeded")

// Error is returned by model backends.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Kind == KindRateLimited {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("unexpected error during model invocation: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrRateLimited for a rate limited error.
func (e *Error) Is(target error) bool {
	return target == ErrRateLimited && e.Kind == KindRateLimited
}

// Invoke runs call under policy and maps the outcome onto the model error
// taxonomy: exhausted retries become KindRateLimited, every other failure
// KindUnexpected. Context cancellation is returned as is.
func Invoke(ctx context.Context, policy retry.Policy, call func(ctx context.Context) error) error {
	err := policy.Do(ctx, func(ctx context.Context, _ int) error {
		return call(ctx)
	})
	if err == nil {
		return nil
	}
	var exhausted *retry.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		return &Error{Kind: KindRateLimited, Err: exhausted}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &Error{Kind: KindUnexpected, Err: err}
	}
}
