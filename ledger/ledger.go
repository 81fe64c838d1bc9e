//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package ledger records the provenance of generated assets: which prompt
// produced which stored artifact, and when.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyKey is returned when a record without a key is written.
var ErrEmptyKey = errors.New("ledger: empty record key")

// Record links a stored artifact to the prompt that produced it.
type Record struct {
	Key       string    `json:"key"`
	Locator   string    `json:"locator"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}

// Service persists provenance records.
// Writing a record under an existing key replaces it.
type Service interface {
	Put(ctx context.Context, rec Record) error
	// Get returns nil, nil when no record exists under key.
	Get(ctx context.Context, key string) (*Record, error)
}

// Prepare validates rec and stamps CreatedAt when unset.
func Prepare(rec Record) (Record, error) {
	if rec.Key == "" {
		return rec, ErrEmptyKey
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec, nil
}
