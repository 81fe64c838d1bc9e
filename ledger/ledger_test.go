//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepare(t *testing.T) {
	_, err := Prepare(Record{Prompt: "p"})
	assert.ErrorIs(t, err, ErrEmptyKey)

	rec, err := Prepare(Record{Key: "evt-1"})
	require.NoError(t, err)
	assert.False(t, rec.CreatedAt.IsZero())

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec, err = Prepare(Record{Key: "evt-1", CreatedAt: fixed})
	require.NoError(t, err)
	assert.Equal(t, fixed, rec.CreatedAt)
}
