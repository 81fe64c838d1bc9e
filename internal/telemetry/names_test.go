//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import "testing"

// Test span name helper for simple formatting and empty step edge case.
func TestSpanNameHelpers(t *testing.T) {
	if got := NewStepSpanName(StepGuide); got != "step guide" {
		t.Fatalf("NewStepSpanName got %q", got)
	}
	if got := NewStepSpanName(""); got != "step" {
		t.Fatalf("NewStepSpanName empty got %q", got)
	}
}
