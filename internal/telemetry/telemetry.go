//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the span names, attribute keys and helpers shared
// by the tracing and metrics packages and the pipeline.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"trpc.group/trpc-go/trpc-gameasset-go/model"
)

// telemetry service constants.
const (
	ServiceName      = "gameasset"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-gameasset-go"
	InstrumentName   = "trpc.gameasset.go"

	SpanNameRun          = "generate_assets"
	SpanNameBrandbook    = "brandbook"
	SpanNameRenderAssets = "render_assets"
	SpanNamePrefixStep   = "step"
)

// Pipeline steps.
const (
	StepGuide           = "guide"
	StepCharacterPrompt = "character_prompt"
	StepImage           = "image"
	StepProvenance      = "provenance"
)

// Metric instrument names.
const (
	MetricRuns         = "gameasset.runs"
	MetricStepDuration = "gameasset.step.duration"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// telemetry attributes constants.
var (
	KeyRequestID     = "trpc.gameasset.request_id"
	KeyStep          = "trpc.gameasset.step"
	KeyDocumentCount = "trpc.gameasset.document_count"
	KeyArtifactKey   = "trpc.gameasset.artifact_key"
	KeyLocator       = "trpc.gameasset.locator"
	KeyAssetClass    = "trpc.gameasset.asset_class"
	KeyOutcome       = "trpc.gameasset.outcome"
)

// NewStepSpanName returns the span name of a pipeline step.
func NewStepSpanName(step string) string {
	if step == "" {
		return SpanNamePrefixStep
	}
	return SpanNamePrefixStep + " " + step
}

// TraceModelCall records the model used by a step. Payloads are never
// recorded, only their sizes.
func TraceModelCall(span trace.Span, info model.Info, conv model.Conversation, output string) {
	docs := 0
	for _, turn := range conv {
		for _, b := range turn.Blocks {
			if b.Type == model.BlockDocument {
				docs++
			}
		}
	}
	span.SetAttributes(
		attribute.String("gen_ai.system", info.Provider),
		attribute.String("gen_ai.request.model", info.Name),
		attribute.Int(KeyDocumentCount, docs),
		attribute.Int("gen_ai.response.length", len(output)),
	)
}

// TraceArtifact records a stored artifact.
func TraceArtifact(span trace.Span, key, locator string) {
	span.SetAttributes(
		attribute.String(KeyArtifactKey, key),
		attribute.String(KeyLocator, locator),
	)
}

// EndSpan marks span failed when err is set.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
